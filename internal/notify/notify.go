// Package notify delivers owner briefings over an out-of-band channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Notifier delivers a briefing to the owning user. Delivery is best
// effort; the persisted notification row is the source of truth.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// SlackNotifier posts briefings to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a notifier for the given bot token and channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

func (n *SlackNotifier) Send(ctx context.Context, title, body string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fmt.Sprintf("*%s*\n%s", title, body), false),
	)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	return nil
}

// LogNotifier writes briefings to the log. Used when Slack is not
// configured, and in tests.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Send(_ context.Context, title, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Owner briefing", "title", title, "body", body)
	return nil
}
