package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "teamd.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func newTestAgent(t *testing.T, s *Store, name, parentID string) *Agent {
	t.Helper()
	a, err := s.CreateAgent(&Agent{Name: name, TeamID: "team-1", ParentID: parentID})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return a
}

func TestAgentOwnerInvariant(t *testing.T) {
	a := &Agent{ID: "x"}
	if _, err := a.Owner(); err == nil {
		t.Fatal("expected error for agent with no owner")
	}

	a.TeamID = "t1"
	a.AideID = "a1"
	if _, err := a.Owner(); err == nil {
		t.Fatal("expected error for agent with both owners")
	}

	a.AideID = ""
	owner, err := a.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner.Kind != OwnerTeam || owner.ID != "t1" {
		t.Fatalf("unexpected owner: %+v", owner)
	}
}

func TestCreateAgentRejectsMissingOwner(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateAgent(&Agent{Name: "orphan"}); err == nil {
		t.Fatal("expected error creating agent without owner")
	}
}

func TestTryMarkRunning(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "lead", "")

	ok, err := s.TryMarkRunning(a.ID)
	if err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if !ok {
		t.Fatal("expected idle agent to transition to running")
	}

	ok, err = s.TryMarkRunning(a.ID)
	if err != nil {
		t.Fatalf("mark running again: %v", err)
	}
	if ok {
		t.Fatal("expected second transition to fail while running")
	}

	if err := s.SetAgentStatus(a.ID, AgentPaused); err != nil {
		t.Fatalf("set paused: %v", err)
	}
	ok, _ = s.TryMarkRunning(a.ID)
	if ok {
		t.Fatal("expected paused agent to stay paused")
	}
}

func TestBackoffCounters(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "worker", "")

	next := a.CreatedAt.Add(time.Minute)
	if err := s.ScheduleBackoff(a.ID, next); err != nil {
		t.Fatalf("schedule backoff: %v", err)
	}
	if err := s.ScheduleBackoff(a.ID, next.Add(time.Minute)); err != nil {
		t.Fatalf("schedule backoff: %v", err)
	}

	got, err := s.GetAgent(a.ID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.BackoffAttempts != 2 {
		t.Fatalf("expected 2 backoff attempts, got %d", got.BackoffAttempts)
	}
	if got.NextRunAt == nil {
		t.Fatal("expected next_run_at to be set")
	}

	if err := s.ClearBackoff(a.ID); err != nil {
		t.Fatalf("clear backoff: %v", err)
	}
	got, _ = s.GetAgent(a.ID)
	if got.BackoffAttempts != 0 {
		t.Fatalf("expected reset counter, got %d", got.BackoffAttempts)
	}
}

func TestListDueAgents(t *testing.T) {
	s := newTestStore(t)
	due := newTestAgent(t, s, "due", "")
	noWork := newTestAgent(t, s, "no-work", "")
	running := newTestAgent(t, s, "running", "")

	owner := OwnerRef{Kind: OwnerTeam, ID: "team-1"}
	for _, id := range []string{due.ID, running.ID} {
		if _, err := s.EnqueueTask(owner, id, "", "do something", SourceSystem); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := s.SetAgentStatus(running.ID, AgentRunning); err != nil {
		t.Fatalf("set running: %v", err)
	}

	agents, err := s.ListDueAgents(time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("list due agents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != due.ID {
		t.Fatalf("expected only %s due, got %+v", due.ID, agents)
	}
	_ = noWork
}
