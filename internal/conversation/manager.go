// Package conversation manages per-agent message threads: ordered
// append, token-budget trimming, and summary-based compaction. The
// summary acts as a movable horizon; once a conversation is compacted,
// its effective context is the latest summary plus everything after it,
// so context stays bounded no matter how long the history grows.
package conversation

import (
	"context"
	"fmt"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// SummarizeFunc condenses a visible context into one summary text.
// Wired to an LLM call in production, a fake in tests.
type SummarizeFunc func(ctx context.Context, messages []store.Message) (string, error)

// Manager provides thread operations over the store.
type Manager struct {
	store *store.Store
}

func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// EstimateTokens approximates the token count of a text as
// ceil(len/4). Intentionally crude; callers budget against this
// formula, not real tokenizer output.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Append adds a message to the conversation with the next sequence value.
func (m *Manager) Append(conversationID int64, role, content string) (*store.Message, error) {
	return m.store.AppendMessage(conversationID, role, content)
}

// BuildContext returns the conversation's effective context trimmed to
// a token budget: walk newest to oldest, stop before the budget is
// exceeded, then restore chronological order. The newest message is
// always included even if it alone exceeds the budget.
func (m *Manager) BuildContext(conversationID int64, maxTokens int) ([]store.Message, error) {
	messages, err := m.ContextWithCompaction(conversationID)
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 || len(messages) == 0 {
		return messages, nil
	}

	total := 0
	cut := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := EstimateTokens(messages[i].Content)
		if total+cost > maxTokens && i < len(messages)-1 {
			break
		}
		total += cost
		cut = i
	}
	return messages[cut:], nil
}

// ContextWithCompaction returns the latest summary message (if any)
// followed by every message appended after it.
func (m *Manager) ContextWithCompaction(conversationID int64) ([]store.Message, error) {
	summary, err := m.store.LatestSummary(conversationID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return m.store.ListMessages(conversationID)
	}
	after, err := m.store.MessagesAfter(conversationID, summary.Seq)
	if err != nil {
		return nil, err
	}
	return append([]store.Message{*summary}, after...), nil
}

// CompactIfNeeded appends a summary message when the visible context
// has grown past maxMessages. Returns true when compaction fired.
// Prior messages are kept; the new summary simply moves the context
// horizon forward.
func (m *Manager) CompactIfNeeded(ctx context.Context, conversationID int64, maxMessages int, summarize SummarizeFunc) (bool, error) {
	if maxMessages <= 0 {
		return false, nil
	}
	visible, err := m.ContextWithCompaction(conversationID)
	if err != nil {
		return false, err
	}
	if len(visible) <= maxMessages {
		return false, nil
	}

	summary, err := summarize(ctx, visible)
	if err != nil {
		return false, fmt.Errorf("summarize conversation %d: %w", conversationID, err)
	}
	if _, err := m.store.AppendMessage(conversationID, store.RoleSummary, summary); err != nil {
		return false, err
	}
	return true, nil
}
