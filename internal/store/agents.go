package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAgent inserts an agent row. ID is generated if empty. Exactly
// one of TeamID/AideID must be set.
func (s *Store) CreateAgent(a *Agent) (*Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AgentIdle
	}
	if _, err := a.Owner(); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, team_id, aide_id, parent_id, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.TeamID, a.AideID, a.ParentID, a.Status)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return s.GetAgent(a.ID)
}

const agentColumns = `id, name, team_id, aide_id, parent_id, status,
	next_run_at, backoff_attempts, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var nextRunAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Name, &a.TeamID, &a.AideID, &a.ParentID, &a.Status,
		&nextRunAt, &a.BackoffAttempts, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nextRunAt.Valid {
		a.NextRunAt = &nextRunAt.Time
	}
	return &a, nil
}

// GetAgent returns an agent by id.
func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListSubordinates returns the agents whose parent is leadID.
func (s *Store) ListSubordinates(leadID string) ([]Agent, error) {
	rows, err := s.db.Query(`SELECT `+agentColumns+` FROM agents WHERE parent_id = ? ORDER BY name ASC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list subordinates: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// ListAgents returns all agents, leads first.
func (s *Store) ListAgents() ([]Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentColumns + ` FROM agents ORDER BY parent_id ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// ListDueAgents returns idle agents whose next_run_at has passed (or is
// unset) and that have pending work queued.
func (s *Store) ListDueAgents(now time.Time) ([]Agent, error) {
	rows, err := s.db.Query(`
		SELECT `+agentColumns+` FROM agents a
		WHERE a.status = 'idle'
		  AND (a.next_run_at IS NULL OR a.next_run_at <= ?)
		  AND EXISTS (SELECT 1 FROM tasks t WHERE t.assigned_to = a.id AND t.status = 'pending')
		ORDER BY a.next_run_at ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// SetAgentStatus updates an agent's status unconditionally.
func (s *Store) SetAgentStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE agents SET status = ?, updated_at = datetime('now') WHERE id = ?`, status, id)
	return err
}

// TryMarkRunning transitions an idle agent to running. Returns false if
// the agent is not idle (already running, or paused). The conditional
// update makes the single-worker-per-agent assumption a real guarantee.
func (s *Store) TryMarkRunning(id string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE agents SET status = 'running', updated_at = datetime('now')
		WHERE id = ? AND status = 'idle'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark running: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ScheduleBackoff records a failure: increments the attempt counter and
// sets the next run time.
func (s *Store) ScheduleBackoff(id string, nextRun time.Time) error {
	_, err := s.db.Exec(`
		UPDATE agents SET backoff_attempts = backoff_attempts + 1,
			next_run_at = ?, updated_at = datetime('now')
		WHERE id = ?
	`, nextRun, id)
	return err
}

// ClearBackoff resets the attempt counter after a successful task.
func (s *Store) ClearBackoff(id string) error {
	_, err := s.db.Exec(`
		UPDATE agents SET backoff_attempts = 0, updated_at = datetime('now')
		WHERE id = ?
	`, id)
	return err
}

// ScheduleNextRun sets an agent's next autonomous run time.
func (s *Store) ScheduleNextRun(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE agents SET next_run_at = ?, updated_at = datetime('now') WHERE id = ?`, at, id)
	return err
}
