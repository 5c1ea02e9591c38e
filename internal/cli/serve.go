package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tnsengimana/autonomous-teams/internal/agent"
	"github.com/tnsengimana/autonomous-teams/internal/conversation"
	"github.com/tnsengimana/autonomous-teams/internal/delegation"
	"github.com/tnsengimana/autonomous-teams/internal/extraction"
	"github.com/tnsengimana/autonomous-teams/internal/graph"
	"github.com/tnsengimana/autonomous-teams/internal/notify"
	"github.com/tnsengimana/autonomous-teams/internal/provider"
	"github.com/tnsengimana/autonomous-teams/internal/scheduler"
	"github.com/tnsengimana/autonomous-teams/internal/store"
	"github.com/tnsengimana/autonomous-teams/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	printHeader("🤖 teamd Daemon")

	cfg, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("no API key configured (set TEAMD_API_KEY)")
	}
	llm := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Model.Name)

	var notifier notify.Notifier = &notify.LogNotifier{}
	if cfg.Slack.Token != "" && cfg.Slack.Channel != "" {
		notifier = notify.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel)
		slog.Info("Slack briefings enabled", "channel", cfg.Slack.Channel)
	}

	graphStore := graph.NewStore(s.DB())
	registry := buildRegistry(s, graphStore)
	threads := conversation.NewManager(s)
	controller := agent.NewController(s, threads, llm, registry,
		&extraction.Extractor{Provider: llm},
		&agent.Briefer{Provider: llm, Store: s, Notifier: notifier},
		agent.ControllerConfig{
			Model:            cfg.Model.Name,
			MaxSteps:         cfg.Model.MaxSteps,
			MaxMessages:      cfg.Session.MaxMessages,
			MaxContextTokens: cfg.Session.MaxContextTokens,
			BackoffBase:      cfg.Backoff.Base,
			BackoffMax:       cfg.Backoff.Max,
			LeadRunInterval:  cfg.Session.LeadRunInterval,
		}, nil)

	sched := scheduler.New(scheduler.Config{
		TickInterval:          cfg.Scheduler.TickInterval,
		MaxConcurrentSessions: cfg.Scheduler.MaxConcurrentSessions,
		MaxConcLLM:            cfg.Scheduler.MaxConcLLM,
		LockPath:              cfg.Scheduler.LockPath,
	}, s, controller)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Daemon started", "db", cfg.DBPath, "model", cfg.Model.Name)
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// buildRegistry registers every tool under its session scopes. Graph
// tools are shared knowledge tools, visible everywhere; delegation is
// lead-only; reporting and user-input requests are subordinate-side.
func buildRegistry(s *store.Store, graphStore *graph.Store) *tools.Registry {
	registry := tools.NewRegistry()
	allScopes := []tools.Scope{
		tools.ScopeForeground,
		tools.ScopeBackgroundLead,
		tools.ScopeBackgroundSubordinate,
	}
	background := []tools.Scope{
		tools.ScopeBackgroundLead,
		tools.ScopeBackgroundSubordinate,
	}

	registry.Register(&tools.CreateNodeTool{Graph: graphStore}, allScopes...)
	registry.Register(&tools.CreateEdgeTool{Graph: graphStore}, allScopes...)
	registry.Register(&tools.QueryGraphTool{Graph: graphStore}, allScopes...)
	registry.Register(&tools.NeighborsTool{Graph: graphStore}, allScopes...)
	registry.Register(&tools.CreateNodeTypeTool{Graph: graphStore}, allScopes...)
	registry.Register(&tools.CreateEdgeTypeTool{Graph: graphStore}, allScopes...)

	registry.Register(&tools.ScheduleTaskTool{Store: s}, background...)
	registry.Register(&tools.DelegateTaskTool{Delegator: delegation.NewDelegator(s)}, tools.ScopeBackgroundLead)
	registry.Register(&tools.ReportToLeadTool{Store: s}, tools.ScopeBackgroundSubordinate)
	registry.Register(&tools.RequestUserInputTool{Store: s}, tools.ScopeBackgroundSubordinate)
	return registry
}
