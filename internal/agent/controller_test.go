package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tnsengimana/autonomous-teams/internal/conversation"
	"github.com/tnsengimana/autonomous-teams/internal/extraction"
	"github.com/tnsengimana/autonomous-teams/internal/provider"
	"github.com/tnsengimana/autonomous-teams/internal/store"
)

type recordingNotifier struct {
	titles []string
}

func (n *recordingNotifier) Send(_ context.Context, title, _ string) error {
	n.titles = append(n.titles, title)
	return nil
}

func newTestController(t *testing.T, fake *fakeProvider) (*Controller, *store.Store, *recordingNotifier) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "teamd.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	notifier := &recordingNotifier{}
	c := NewController(s, conversation.NewManager(s), fake,
		testRegistry(&echoTool{}),
		&extraction.Extractor{Provider: fake},
		&Briefer{Provider: fake, Store: s, Notifier: notifier},
		ControllerConfig{
			MaxMessages:     50,
			BackoffBase:     time.Second,
			BackoffMax:      time.Minute,
			LeadRunInterval: time.Hour,
		}, nil)
	return c, s, notifier
}

func TestSessionWithoutWorkIsNoOp(t *testing.T) {
	fake := &fakeProvider{}
	c, s, _ := newTestController(t, fake)
	lead, err := s.CreateAgent(&store.Agent{Name: "lead", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	if err := c.RunSession(context.Background(), lead.ID); err != nil {
		t.Fatalf("session: %v", err)
	}

	if fake.calls != 0 {
		t.Fatalf("expected no model calls, got %d", fake.calls)
	}
	got, _ := s.GetAgent(lead.ID)
	if got.Status != store.AgentIdle {
		t.Fatalf("expected idle, got %s", got.Status)
	}
	if got.NextRunAt != nil {
		t.Fatal("no-op session must not reschedule")
	}
}

func TestSessionProcessesTaskAndWrapsUp(t *testing.T) {
	// One payload serves both the extraction and briefing calls.
	wrapUp := `{"notify": true, "title": "Findings", "message": "Done.", "items": []}`
	fake := &fakeProvider{
		responses: []*provider.ChatResponse{{Content: "the answer"}},
		objects:   []string{wrapUp, wrapUp},
	}
	c, s, notifier := newTestController(t, fake)
	lead, _ := s.CreateAgent(&store.Agent{Name: "lead", TeamID: "team-1"})
	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	task, err := s.EnqueueTask(owner, lead.ID, "", "find the answer", store.SourceUser)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := c.RunSession(context.Background(), lead.ID); err != nil {
		t.Fatalf("session: %v", err)
	}

	// Detached extraction signals through the error channel.
	select {
	case err := <-c.ExtractionErrs:
		if err != nil {
			t.Fatalf("extraction: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never finished")
	}

	got, _ := s.GetTaskByID(task.TaskID)
	if got.Status != store.TaskCompleted || got.Result != "the answer" {
		t.Fatalf("unexpected task state: %+v", got)
	}

	conv, _ := s.GetOrCreateConversation(lead.ID, store.ModeBackground)
	messages, _ := s.ListMessages(conv.ID)
	if len(messages) != 2 || messages[0].Role != store.RoleUser || messages[1].Role != store.RoleAssistant {
		t.Fatalf("unexpected transcript: %+v", messages)
	}

	// The briefing decided to notify.
	if len(notifier.titles) != 1 || notifier.titles[0] != "Findings" {
		t.Fatalf("unexpected notifications: %+v", notifier.titles)
	}
	notes, _ := s.ListNotifications(owner, 10)
	if len(notes) != 1 || notes[0].Title != "Findings" {
		t.Fatalf("unexpected notification rows: %+v", notes)
	}

	agent, _ := s.GetAgent(lead.ID)
	if agent.Status != store.AgentIdle {
		t.Fatalf("expected idle after session, got %s", agent.Status)
	}
	if agent.NextRunAt == nil {
		t.Fatal("expected lead to reschedule its next run")
	}
	if agent.BackoffAttempts != 0 {
		t.Fatalf("expected cleared backoff, got %d", agent.BackoffAttempts)
	}
}

func TestSessionFailureHaltsAndBacksOff(t *testing.T) {
	// No scripted responses: the first model call fails.
	fake := &fakeProvider{}
	c, s, notifier := newTestController(t, fake)
	worker, _ := s.CreateAgent(&store.Agent{Name: "worker", TeamID: "team-1", ParentID: "some-lead"})
	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	first, _ := s.EnqueueTask(owner, worker.ID, "", "doomed", store.SourceUser)
	second, _ := s.EnqueueTask(owner, worker.ID, "", "untouched", store.SourceUser)

	if err := c.RunSession(context.Background(), worker.ID); err != nil {
		t.Fatalf("session: %v", err)
	}

	got, _ := s.GetTaskByID(first.TaskID)
	if got.Status != store.TaskFailed {
		t.Fatalf("expected first task failed, got %s", got.Status)
	}
	got, _ = s.GetTaskByID(second.TaskID)
	if got.Status != store.TaskPending {
		t.Fatalf("expected remaining task untouched, got %s", got.Status)
	}

	agent, _ := s.GetAgent(worker.ID)
	if agent.Status != store.AgentIdle {
		t.Fatalf("expected idle after failure, got %s", agent.Status)
	}
	if agent.BackoffAttempts != 1 || agent.NextRunAt == nil {
		t.Fatalf("expected backoff scheduled, got attempts=%d next=%v", agent.BackoffAttempts, agent.NextRunAt)
	}

	// Zero tasks processed: no extraction, no briefing.
	if len(notifier.titles) != 0 {
		t.Fatalf("failure session must not notify, got %+v", notifier.titles)
	}
	select {
	case err := <-c.ExtractionErrs:
		t.Fatalf("unexpected extraction signal: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSuccessResetsBackoffForLaterFailure(t *testing.T) {
	// One response: the first task completes, the second task's model
	// call fails.
	wrapUp := `{"notify": false, "items": []}`
	fake := &fakeProvider{
		responses: []*provider.ChatResponse{{Content: "done"}},
		objects:   []string{wrapUp, wrapUp},
	}
	c, s, _ := newTestController(t, fake)
	worker, _ := s.CreateAgent(&store.Agent{Name: "worker", TeamID: "team-1", ParentID: "some-lead"})
	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	s.EnqueueTask(owner, worker.ID, "", "first", store.SourceUser)
	s.EnqueueTask(owner, worker.ID, "", "second", store.SourceUser)

	// Seed a failure streak from earlier sessions.
	for i := 0; i < 3; i++ {
		if err := s.ScheduleBackoff(worker.ID, time.Now().Add(-time.Minute)); err != nil {
			t.Fatalf("seed backoff: %v", err)
		}
	}

	before := time.Now()
	if err := c.RunSession(context.Background(), worker.ID); err != nil {
		t.Fatalf("session: %v", err)
	}

	agent, _ := s.GetAgent(worker.ID)
	if agent.BackoffAttempts != 1 {
		t.Fatalf("expected attempt counter reset then incremented to 1, got %d", agent.BackoffAttempts)
	}
	if agent.NextRunAt == nil {
		t.Fatal("expected a backoff schedule")
	}
	// The success before the failure resets the streak, so the delay is
	// first-attempt sized (base 1s plus jitter), not 2^3 out.
	delay := agent.NextRunAt.Sub(before)
	if delay >= 2*time.Second {
		t.Fatalf("delay %v was computed from the pre-session attempt counter", delay)
	}

	select {
	case <-c.ExtractionErrs:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never finished")
	}
}

func TestSessionSkipsNonIdleAgent(t *testing.T) {
	fake := &fakeProvider{}
	c, s, _ := newTestController(t, fake)
	a, _ := s.CreateAgent(&store.Agent{Name: "paused", TeamID: "team-1"})
	owner := store.OwnerRef{Kind: store.OwnerTeam, ID: "team-1"}
	s.EnqueueTask(owner, a.ID, "", "waiting", store.SourceUser)
	s.SetAgentStatus(a.ID, store.AgentPaused)

	if err := c.RunSession(context.Background(), a.ID); err != nil {
		t.Fatalf("session: %v", err)
	}
	if fake.calls != 0 {
		t.Fatal("paused agent must not run")
	}
	got, _ := s.GetAgent(a.ID)
	if got.Status != store.AgentPaused {
		t.Fatalf("expected paused preserved, got %s", got.Status)
	}
}
