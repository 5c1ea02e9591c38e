package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *recordingRunner) RunSession(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, agentID)
	return nil
}

func newTestScheduler(t *testing.T, runner SessionRunner) (*Scheduler, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "teamd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	sched := New(Config{LockPath: filepath.Join(dir, "scheduler.lock")}, s, runner)
	return sched, s
}

func TestTickDispatchesDueAgents(t *testing.T) {
	runner := &recordingRunner{}
	sched, s := newTestScheduler(t, runner)

	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	withWork, _ := s.CreateAgent(&store.Agent{Name: "busy", TeamID: "team-1"})
	s.EnqueueTask(owner, withWork.ID, "", "do something", store.SourceUser)
	idle, _ := s.CreateAgent(&store.Agent{Name: "idle", TeamID: "team-1"})

	sched.Tick(context.Background(), time.Now())

	if len(runner.runs) != 1 || runner.runs[0] != withWork.ID {
		t.Fatalf("expected one session for the agent with work, got %+v", runner.runs)
	}
	for _, id := range runner.runs {
		if id == idle.ID {
			t.Fatal("agent without work must not be dispatched")
		}
	}
}

func TestTickRespectsBackoffSchedule(t *testing.T) {
	runner := &recordingRunner{}
	sched, s := newTestScheduler(t, runner)

	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	a, _ := s.CreateAgent(&store.Agent{Name: "backing-off", TeamID: "team-1"})
	s.EnqueueTask(owner, a.ID, "", "doomed work", store.SourceUser)
	s.ScheduleBackoff(a.ID, time.Now().Add(time.Hour))

	sched.Tick(context.Background(), time.Now())
	if len(runner.runs) != 0 {
		t.Fatalf("agent in backoff must not run, got %+v", runner.runs)
	}

	// Once the backoff window passes, the agent is due again.
	sched.Tick(context.Background(), time.Now().Add(2*time.Hour))
	if len(runner.runs) != 1 || runner.runs[0] != a.ID {
		t.Fatalf("expected session after backoff expiry, got %+v", runner.runs)
	}
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	runner := &recordingRunner{}
	sched, s := newTestScheduler(t, runner)

	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	a, _ := s.CreateAgent(&store.Agent{Name: "worker", TeamID: "team-1"})
	s.EnqueueTask(owner, a.ID, "", "work", store.SourceUser)

	other := NewFileLock(sched.cfg.LockPath)
	acquired, err := other.TryLock()
	if err != nil || !acquired {
		t.Fatalf("pre-lock: acquired=%v err=%v", acquired, err)
	}
	defer other.Unlock()

	sched.Tick(context.Background(), time.Now())
	if len(runner.runs) != 0 {
		t.Fatalf("tick must skip while another process holds the lock, got %+v", runner.runs)
	}
}

func TestSemaphore(t *testing.T) {
	sem := NewSemaphore(2)
	if !sem.TryAcquire() || !sem.TryAcquire() {
		t.Fatal("expected two acquisitions to succeed")
	}
	if sem.TryAcquire() {
		t.Fatal("third acquisition must fail")
	}
	if sem.Available() != 0 {
		t.Fatalf("expected 0 available, got %d", sem.Available())
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Fatal("released slot must be reusable")
	}
}

func TestFileLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	a := NewFileLock(path)
	b := NewFileLock(path)

	acquired, err := a.TryLock()
	if err != nil || !acquired {
		t.Fatalf("first lock: acquired=%v err=%v", acquired, err)
	}
	acquired, err = b.TryLock()
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if acquired {
		t.Fatal("second lock must not acquire while first holds")
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	acquired, err = b.TryLock()
	if err != nil || !acquired {
		t.Fatalf("lock after release: acquired=%v err=%v", acquired, err)
	}
	_ = b.Unlock()
}
