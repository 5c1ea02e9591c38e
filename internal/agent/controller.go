package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tnsengimana/autonomous-teams/internal/conversation"
	"github.com/tnsengimana/autonomous-teams/internal/extraction"
	"github.com/tnsengimana/autonomous-teams/internal/provider"
	"github.com/tnsengimana/autonomous-teams/internal/store"
	"github.com/tnsengimana/autonomous-teams/internal/tools"
)

// ControllerConfig bounds a work session.
type ControllerConfig struct {
	Model            string
	MaxSteps         int
	MaxMessages      int
	MaxContextTokens int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	LeadRunInterval  time.Duration
}

// Controller runs work sessions: idle -> running -> idle, claiming
// pending tasks FIFO, driving the tool loop for each, and handling
// the wrap-up (extraction, briefing, rescheduling).
type Controller struct {
	Store     *store.Store
	Threads   *conversation.Manager
	Provider  provider.LLMProvider
	Registry  *tools.Registry
	Extractor *extraction.Extractor
	Briefer   *Briefer
	Config    ControllerConfig
	Logger    *slog.Logger

	// ExtractionErrs surfaces errors from the detached extraction
	// goroutine. Buffered; sends never block the session.
	ExtractionErrs chan error

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewController wires a session controller.
func NewController(s *store.Store, threads *conversation.Manager, p provider.LLMProvider, registry *tools.Registry, extractor *extraction.Extractor, briefer *Briefer, cfg ControllerConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Store:          s,
		Threads:        threads,
		Provider:       p,
		Registry:       registry,
		Extractor:      extractor,
		Briefer:        briefer,
		Config:         cfg,
		Logger:         logger,
		ExtractionErrs: make(chan error, 16),
		inFlight:       make(map[string]bool),
	}
}

// RunSession executes one work session for an agent. A session with no
// pending work is a true no-op: no status change, no compaction, no
// extraction, no reschedule. The idle transition on exit is guaranteed
// by defer once the agent was marked running.
func (c *Controller) RunSession(ctx context.Context, agentID string) error {
	if !c.acquire(agentID) {
		c.Logger.Debug("Session already in flight", "agent", agentID)
		return nil
	}
	defer c.release(agentID)

	agent, err := c.Store.GetAgent(agentID)
	if err != nil {
		return err
	}
	owner, err := agent.Owner()
	if err != nil {
		// Corrupt owner state is the one hard error in this path.
		return err
	}

	status, err := c.Store.QueueStatus(agentID)
	if err != nil {
		return err
	}
	if !status.HasWork {
		return nil
	}

	ok, err := c.Store.TryMarkRunning(agentID)
	if err != nil {
		return err
	}
	if !ok {
		c.Logger.Debug("Agent not idle, skipping session", "agent", agentID, "status", agent.Status)
		return nil
	}
	defer func() {
		if err := c.Store.SetAgentStatus(agentID, store.AgentIdle); err != nil {
			c.Logger.Error("Agent stuck in running state", "agent", agentID, "error", err)
		}
	}()

	conv, err := c.Store.GetOrCreateConversation(agentID, store.ModeBackground)
	if err != nil {
		return err
	}
	systemPrompt, err := c.buildSystemPrompt(agent)
	if err != nil {
		return err
	}

	runner := &Runner{
		Provider: c.Provider,
		Registry: c.Registry,
		Scope:    scopeFor(agent),
		Model:    c.Config.Model,
		MaxSteps: c.Config.MaxSteps,
	}
	callerCtx := tools.WithCaller(ctx, tools.Caller{
		AgentID: agent.ID,
		Owner:   owner,
		Lead:    agent.IsLead(),
	})

	processed := 0
	// attempts tracks the failure streak within and across sessions. A
	// completed task resets it, so a later failure backs off from base
	// again rather than from the pre-session counter.
	attempts := agent.BackoffAttempts
	var workLog []string
	for {
		task, err := c.Store.ClaimNextTask(agentID)
		if err != nil {
			return err
		}
		if task == nil {
			break
		}

		reply, err := c.processTask(callerCtx, runner, conv, systemPrompt, task)
		if err != nil {
			c.Logger.Warn("Task failed", "agent", agentID, "task", task.TaskID, "error", err)
			if ferr := c.Store.FailTask(task.TaskID, err.Error()); ferr != nil {
				c.Logger.Error("Task failure not recorded", "task", task.TaskID, "error", ferr)
			}
			delay := Backoff(attempts+1, c.Config.BackoffBase, c.Config.BackoffMax)
			if berr := c.Store.ScheduleBackoff(agentID, time.Now().Add(delay)); berr != nil {
				c.Logger.Error("Backoff not scheduled", "agent", agentID, "error", berr)
			}
			break
		}

		attempts = 0
		if err := c.Store.ClearBackoff(agentID); err != nil {
			c.Logger.Error("Backoff not cleared", "agent", agentID, "error", err)
		}
		processed++
		workLog = append(workLog, fmt.Sprintf("Task: %s\nResult: %s", task.Instruction, reply))

		compacted, err := c.Threads.CompactIfNeeded(ctx, conv.ID, c.Config.MaxMessages, c.summarize)
		if err != nil {
			c.Logger.Warn("Compaction failed", "agent", agentID, "error", err)
		} else if compacted {
			c.Logger.Info("Conversation compacted", "agent", agentID, "conversation", conv.ID)
		}
	}

	if processed == 0 {
		return nil
	}

	c.runExtraction(conv.ID, agent.ID)

	if agent.IsLead() {
		if c.Briefer != nil {
			c.Briefer.Brief(ctx, agent, owner, strings.Join(workLog, "\n\n"))
		}
		interval := c.Config.LeadRunInterval
		if interval <= 0 {
			interval = time.Hour
		}
		if err := c.Store.ScheduleNextRun(agentID, time.Now().Add(interval)); err != nil {
			c.Logger.Error("Next run not scheduled", "agent", agentID, "error", err)
		}
	}

	c.Logger.Info("Work session finished", "agent", agentID, "tasks", processed)
	return nil
}

// processTask runs one task through the tool loop and persists its
// terminal state atomically with the assistant reply.
func (c *Controller) processTask(ctx context.Context, runner *Runner, conv *store.Conversation, systemPrompt string, task *store.Task) (string, error) {
	if _, err := c.Threads.Append(conv.ID, store.RoleUser, task.Instruction); err != nil {
		return "", err
	}

	history, err := c.Threads.BuildContext(conv.ID, c.Config.MaxContextTokens)
	if err != nil {
		return "", err
	}
	messages := make([]provider.Message, 0, len(history)+1)
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, provider.Message{Role: wireRole(m.Role), Content: m.Content})
	}

	result, err := runner.Run(ctx, messages)
	if err != nil {
		return "", err
	}

	if err := c.Store.CompleteTaskWithReply(task.TaskID, conv.ID, result.FinalText); err != nil {
		return "", err
	}
	return result.FinalText, nil
}

// wireRole maps stored roles onto the LLM wire format. Summaries go
// out as system text.
func wireRole(role string) string {
	if role == store.RoleSummary {
		return provider.RoleSystem
	}
	return role
}

func scopeFor(agent *store.Agent) tools.Scope {
	if agent.IsLead() {
		return tools.ScopeBackgroundLead
	}
	return tools.ScopeBackgroundSubordinate
}

// buildSystemPrompt loads the agent's accumulated knowledge once per
// session and folds it into the base prompt.
func (c *Controller) buildSystemPrompt(agent *store.Agent) (string, error) {
	role := "a lead agent; you may delegate to subordinates"
	if !agent.IsLead() {
		role = "a subordinate agent; report findings to your lead"
	}
	prompt := fmt.Sprintf("You are %s, %s. Work through the task you are given using your tools, then answer with a concise result.", agent.Name, role)

	items, err := c.Store.ListKnowledgeItems(agent.ID, 100)
	if err != nil {
		return "", err
	}
	if block := extraction.BuildContextBlock(items); block != "" {
		prompt += "\n\n" + block
	}
	return prompt, nil
}

// summarize is the compaction function: one model call over the
// visible context.
func (c *Controller) summarize(ctx context.Context, messages []store.Message) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	resp, err := c.Provider.Chat(ctx, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "Summarize this working conversation. Preserve decisions, open threads, and results; drop pleasantries and dead ends."},
			{Role: provider.RoleUser, Content: b.String()},
		},
		Model: c.Config.Model,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// runExtraction distills the session transcript in a detached
// goroutine. Errors are logged and surfaced on ExtractionErrs; they
// never affect the finished session.
func (c *Controller) runExtraction(conversationID int64, agentID string) {
	go func() {
		err := c.extractAndPersist(conversationID, agentID)
		if err != nil {
			c.Logger.Warn("Extraction failed", "agent", agentID, "error", err)
		}
		select {
		case c.ExtractionErrs <- err:
		default:
		}
	}()
}

func (c *Controller) extractAndPersist(conversationID int64, agentID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	messages, err := c.Threads.ContextWithCompaction(conversationID)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	items := c.Extractor.Extract(ctx, b.String(), extraction.BackgroundKinds)
	if len(items) == 0 {
		return nil
	}
	return extraction.Persist(c.Store, agentID, items, "")
}

// acquire takes the in-process per-agent gate. Row-level CAS already
// protects the status transition; this keeps two goroutines in the
// same process from even attempting it.
func (c *Controller) acquire(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[agentID] {
		return false
	}
	c.inFlight[agentID] = true
	return true
}

func (c *Controller) release(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, agentID)
}
