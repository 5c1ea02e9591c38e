package conversation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, int64) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "threads.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	a, err := s.CreateAgent(&store.Agent{Name: "worker", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	conv, err := s.GetOrCreateConversation(a.ID, store.ModeBackground)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	return NewManager(s), s, conv.ID
}

func TestEstimateTokensFormula(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{strings.Repeat("x", 401), 101},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestBuildContextRoundTrip(t *testing.T) {
	m, _, convID := newTestManager(t)

	for i := 1; i <= 6; i++ {
		if _, err := m.Append(convID, store.RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	messages, err := m.BuildContext(convID, 0)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(messages) != 6 {
		t.Fatalf("expected all 6 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if msg.Content != fmt.Sprintf("message %d", i+1) {
			t.Fatalf("out of order at %d: %q", i, msg.Content)
		}
	}
}

func TestBuildContextTrimsOldestFirst(t *testing.T) {
	m, _, convID := newTestManager(t)

	// Each message is 40 chars = 10 tokens.
	for i := 0; i < 5; i++ {
		content := fmt.Sprintf("%d%s", i, strings.Repeat("x", 39))
		if _, err := m.Append(convID, store.RoleUser, content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	messages, err := m.BuildContext(convID, 25)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 newest messages within budget, got %d", len(messages))
	}
	if messages[0].Content[0] != '3' || messages[1].Content[0] != '4' {
		t.Fatalf("expected the newest two in order, got %q then %q", messages[0].Content[:1], messages[1].Content[:1])
	}
}

func TestBuildContextKeepsNewestEvenOverBudget(t *testing.T) {
	m, _, convID := newTestManager(t)
	if _, err := m.Append(convID, store.RoleUser, strings.Repeat("x", 400)); err != nil {
		t.Fatalf("append: %v", err)
	}

	messages, err := m.BuildContext(convID, 10)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected newest message kept, got %d messages", len(messages))
	}
}

func TestCompactionMovesHorizon(t *testing.T) {
	m, _, convID := newTestManager(t)

	for i := 1; i <= 10; i++ {
		if _, err := m.Append(convID, store.RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	before, _ := m.ContextWithCompaction(convID)

	summarized := false
	fired, err := m.CompactIfNeeded(context.Background(), convID, 5, func(_ context.Context, messages []store.Message) (string, error) {
		summarized = true
		if len(messages) != 10 {
			t.Fatalf("expected full visible context, got %d", len(messages))
		}
		return "summary of ten messages", nil
	})
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !fired || !summarized {
		t.Fatal("expected compaction to fire")
	}

	after, err := m.ContextWithCompaction(convID)
	if err != nil {
		t.Fatalf("context after compaction: %v", err)
	}
	if len(after) != 1 || after[0].Role != store.RoleSummary {
		t.Fatalf("expected context to be just the summary, got %+v", after)
	}
	if len(after) >= len(before) {
		t.Fatalf("expected strictly shorter context, had %d now %d", len(before), len(after))
	}

	// New messages after the horizon stack on the summary.
	m.Append(convID, store.RoleUser, "message 11")
	after, _ = m.ContextWithCompaction(convID)
	if len(after) != 2 || after[0].Role != store.RoleSummary || after[1].Content != "message 11" {
		t.Fatalf("unexpected context: %+v", after)
	}

	// Below threshold, nothing happens.
	fired, err = m.CompactIfNeeded(context.Background(), convID, 5, func(context.Context, []store.Message) (string, error) {
		t.Fatal("summarizer must not run under threshold")
		return "", nil
	})
	if err != nil || fired {
		t.Fatalf("expected no-op, fired=%v err=%v", fired, err)
	}
}
