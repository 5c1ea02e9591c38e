package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// EnqueueTask creates a pending task for an agent.
func (s *Store) EnqueueTask(owner OwnerRef, assignedTo, assignedBy, instruction, source string) (*Task, error) {
	if owner.Kind != OwnerTeam && owner.Kind != OwnerAide {
		return nil, fmt.Errorf("invalid owner kind: %q", owner.Kind)
	}
	if assignedTo == "" {
		return nil, fmt.Errorf("assigned_to is required")
	}
	taskID := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO tasks (task_id, owner_kind, owner_id, assigned_to, assigned_by, instruction, status, source)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
	`, taskID, string(owner.Kind), owner.ID, assignedTo, assignedBy, instruction, source)
	if err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}
	return s.GetTaskByID(taskID)
}

const taskColumns = `id, task_id, owner_kind, owner_id, assigned_to, assigned_by,
	instruction, status, source, result, error_text, created_at, updated_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	var ownerKind string
	var completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.TaskID, &ownerKind, &t.OwnerID, &t.AssignedTo, &t.AssignedBy,
		&t.Instruction, &t.Status, &t.Source, &t.Result, &t.ErrorText,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	t.OwnerKind = OwnerKind(ownerKind)
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// GetTaskByID returns a task by task_id.
func (s *Store) GetTaskByID(taskID string) (*Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ClaimNextTask atomically selects the oldest pending task for an agent
// and transitions it to in_progress. Returns (nil, nil) if the queue is
// empty. The compare-and-swap UPDATE inside a transaction guards
// against a second worker claiming the same row.
func (s *Store) ClaimNextTask(agentID string) (*Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	var taskID string
	err = tx.QueryRow(`
		SELECT task_id FROM tasks
		WHERE assigned_to = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, agentID).Scan(&taskID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pending task: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE tasks SET status = 'in_progress', updated_at = datetime('now')
		WHERE task_id = ? AND status = 'pending'
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		// Lost the race to another worker; treat as empty queue.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return s.GetTaskByID(taskID)
}

// CompleteTask transitions a task to completed with its result text.
func (s *Store) CompleteTask(taskID, result string) error {
	return s.finishTask(taskID, TaskCompleted, result, "")
}

// FailTask transitions a task to failed with its error text.
func (s *Store) FailTask(taskID, errorText string) error {
	return s.finishTask(taskID, TaskFailed, "", errorText)
}

func (s *Store) finishTask(taskID, status, result, errorText string) error {
	res, err := s.db.Exec(`
		UPDATE tasks SET status = ?, result = ?, error_text = ?,
			updated_at = datetime('now'), completed_at = datetime('now')
		WHERE task_id = ?
	`, status, result, errorText, taskID)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

// CompleteTaskWithReply atomically records a task completion together
// with the assistant message that produced it, so a crash cannot record
// one without the other.
func (s *Store) CompleteTaskWithReply(taskID string, conversationID int64, reply string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE tasks SET status = 'completed', result = ?,
			updated_at = datetime('now'), completed_at = datetime('now')
		WHERE task_id = ?
	`, reply, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}

	if err := appendMessageTx(tx, conversationID, RoleAssistant, reply); err != nil {
		return err
	}
	return tx.Commit()
}

// QueueStatus reports pending/in-progress counts for an agent's queue.
func (s *Store) QueueStatus(agentID string) (*QueueStatus, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*) FROM tasks
		WHERE assigned_to = ? AND status IN ('pending', 'in_progress')
		GROUP BY status
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("queue status: %w", err)
	}
	defer rows.Close()

	var qs QueueStatus
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case TaskPending:
			qs.Pending = count
		case TaskInProgress:
			qs.InProgress = count
		}
	}
	qs.HasWork = qs.Pending > 0 || qs.InProgress > 0
	return &qs, rows.Err()
}

// ListTasks returns tasks for an agent, optionally filtered by status,
// newest first.
func (s *Store) ListTasks(agentID, status string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = ?`
	args := []any{agentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
