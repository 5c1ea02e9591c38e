// Package scheduler polls for agents due to run and dispatches their
// work sessions. One process drives the loop at a time (flock); within
// the process, sessions run concurrently under an errgroup bound plus
// an LLM semaphore.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// SessionRunner executes one work session for an agent. Satisfied by
// agent.Controller.
type SessionRunner interface {
	RunSession(ctx context.Context, agentID string) error
}

// Config holds scheduler settings.
type Config struct {
	TickInterval          time.Duration `json:"tickInterval"`
	MaxConcurrentSessions int           `json:"maxConcurrentSessions"`
	MaxConcLLM            int           `json:"maxConcLLM"`
	LockPath              string        `json:"lockPath"`
}

// DefaultConfig returns sensible scheduler defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		TickInterval:          30 * time.Second,
		MaxConcurrentSessions: 5,
		MaxConcLLM:            3,
		LockPath:              filepath.Join(home, ".teamd", "scheduler.lock"),
	}
}

// Scheduler manages the tick loop and dispatch of due agents.
type Scheduler struct {
	cfg    Config
	store  *store.Store
	runner SessionRunner
	llmSem *Semaphore
	lock   *FileLock
}

// New creates a Scheduler.
func New(cfg Config, s *store.Store, runner SessionRunner) *Scheduler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = def.MaxConcurrentSessions
	}
	if cfg.MaxConcLLM <= 0 {
		cfg.MaxConcLLM = def.MaxConcLLM
	}
	if cfg.LockPath == "" {
		cfg.LockPath = def.LockPath
	}

	return &Scheduler{
		cfg:    cfg,
		store:  s,
		runner: runner,
		llmSem: NewSemaphore(cfg.MaxConcLLM),
		lock:   NewFileLock(cfg.LockPath),
	}
}

// Run starts the scheduler tick loop. Blocks until context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.LockPath), 0755); err != nil {
		return err
	}
	slog.Info("Scheduler started", "tick", s.cfg.TickInterval)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.Tick(ctx, t)
		}
	}
}

// Tick runs one dispatch round: acquire the process lock, list due
// agents, and run their sessions concurrently. Blocks until the round's
// sessions finish so the lock covers them.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	acquired, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("Scheduler lock error", "error", err)
		return
	}
	if !acquired {
		slog.Debug("Scheduler tick skipped: lock held by another process")
		return
	}
	defer s.lock.Unlock()

	due, err := s.store.ListDueAgents(now)
	if err != nil {
		slog.Warn("Scheduler could not list due agents", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	slog.Info("Scheduler dispatching sessions", "due", len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentSessions)
	for _, agent := range due {
		agent := agent
		g.Go(func() error {
			if !s.llmSem.TryAcquire() {
				slog.Warn("Session skipped: LLM concurrency limit", "agent", agent.ID)
				return nil
			}
			defer s.llmSem.Release()

			if err := s.runner.RunSession(gctx, agent.ID); err != nil {
				slog.Error("Work session failed", "agent", agent.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
