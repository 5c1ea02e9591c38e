package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tnsengimana/autonomous-teams/internal/notify"
	"github.com/tnsengimana/autonomous-teams/internal/provider"
	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// briefingSchema constrains the notify-or-not decision.
var briefingSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"notify":  map[string]any{"type": "boolean"},
		"title":   map[string]any{"type": "string"},
		"message": map[string]any{"type": "string"},
	},
	"required": []string{"notify"},
}

type briefingDecision struct {
	Notify  bool   `json:"notify"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Briefer decides after a lead's work session whether the accumulated
// results merit notifying the owner, and delivers the briefing when
// they do.
type Briefer struct {
	Provider provider.LLMProvider
	Store    *store.Store
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Brief runs the briefing decision over a summary of the session's
// work. On a yes: persist a notification row, append the briefing to
// the agent's foreground conversation, and deliver it best effort.
// Failures are logged and swallowed; briefing never aborts a wrap-up.
func (b *Briefer) Brief(ctx context.Context, agent *store.Agent, owner store.OwnerRef, workSummary string) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	req := &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "You decide whether a background work session produced results worth notifying the owner about. Only notify for meaningful outcomes; routine progress does not merit an interruption. When notifying, write a short title and a concise message."},
			{Role: provider.RoleUser, Content: workSummary},
		},
		Model: b.Provider.DefaultModel(),
	}
	var decision briefingDecision
	if err := b.Provider.GenerateObject(ctx, req, briefingSchema, &decision); err != nil {
		logger.Warn("Briefing decision failed", "agent", agent.ID, "error", err)
		return
	}
	if !decision.Notify {
		logger.Debug("Briefing skipped", "agent", agent.ID)
		return
	}
	if decision.Title == "" {
		decision.Title = fmt.Sprintf("Update from %s", agent.Name)
	}

	_, err := b.Store.InsertNotification(&store.Notification{
		AgentID:   agent.ID,
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
		Title:     decision.Title,
		Body:      decision.Message,
	})
	if err != nil {
		logger.Error("Briefing not persisted", "agent", agent.ID, "error", err)
		return
	}

	conv, err := b.Store.GetOrCreateConversation(agent.ID, store.ModeForeground)
	if err == nil {
		_, err = b.Store.AppendMessage(conv.ID, store.RoleAssistant,
			fmt.Sprintf("%s\n\n%s", decision.Title, decision.Message))
	}
	if err != nil {
		logger.Error("Briefing not appended to foreground", "agent", agent.ID, "error", err)
	}

	if b.Notifier != nil {
		if err := b.Notifier.Send(ctx, decision.Title, decision.Message); err != nil {
			logger.Warn("Briefing delivery failed", "agent", agent.ID, "error", err)
		}
	}
}
