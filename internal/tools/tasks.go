package tools

import (
	"context"
	"fmt"

	"github.com/tnsengimana/autonomous-teams/internal/delegation"
	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// ScheduleTaskTool lets an agent queue follow-up work for itself.
type ScheduleTaskTool struct {
	Store *store.Store
}

func (t *ScheduleTaskTool) Name() string { return "schedule_task" }

func (t *ScheduleTaskTool) Description() string {
	return "Queue a follow-up task for yourself. It will be picked up in a later work session."
}

func (t *ScheduleTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"instruction": map[string]any{"type": "string", "description": "What to do in the follow-up task"},
		},
		"required": []string{"instruction"},
	}
}

func (t *ScheduleTaskTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no caller identity in context")
	}
	instruction := GetString(params, "instruction", "")
	if instruction == "" {
		return "Error: instruction is required", nil
	}
	task, err := t.Store.EnqueueTask(caller.Owner, caller.AgentID, caller.AgentID, instruction, store.SourceSelf)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Task queued: %s", task.TaskID), nil
}

// DelegateTaskTool hands work to a subordinate. Lead-only; the handler
// re-checks the caller's role because scope filtering is a convenience,
// not a security boundary.
type DelegateTaskTool struct {
	Delegator delegation.Delegator
}

func (t *DelegateTaskTool) Name() string { return "delegate_task" }

func (t *DelegateTaskTool) Description() string {
	return "Delegate a task to one of your subordinate agents, referenced by name or id."
}

func (t *DelegateTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subordinate": map[string]any{"type": "string", "description": "Name or id of the subordinate agent"},
			"instruction": map[string]any{"type": "string", "description": "What the subordinate should do"},
		},
		"required": []string{"subordinate", "instruction"},
	}
}

func (t *DelegateTaskTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no caller identity in context")
	}
	if !caller.Lead {
		return "Error: only lead agents can delegate tasks", nil
	}
	ref := GetString(params, "subordinate", "")
	instruction := GetString(params, "instruction", "")
	if ref == "" || instruction == "" {
		return "Error: subordinate and instruction are required", nil
	}

	subs, err := t.Delegator.ListSubordinates(caller.AgentID)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	var subID string
	for _, sub := range subs {
		if sub.ID == ref || sub.Name == ref {
			subID = sub.ID
			break
		}
	}
	if subID == "" {
		return fmt.Sprintf("Error: no subordinate named %q", ref), nil
	}

	task, err := t.Delegator.Delegate(caller.AgentID, subID, instruction)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Delegated to %s: %s", ref, task.TaskID), nil
}

// ReportToLeadTool lets a subordinate send findings upward as a task on
// its lead's queue.
type ReportToLeadTool struct {
	Store *store.Store
}

func (t *ReportToLeadTool) Name() string { return "report_to_lead" }

func (t *ReportToLeadTool) Description() string {
	return "Send your findings to your lead agent. The lead reviews the report in its next work session."
}

func (t *ReportToLeadTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"report": map[string]any{"type": "string", "description": "The findings or status to report"},
		},
		"required": []string{"report"},
	}
}

func (t *ReportToLeadTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no caller identity in context")
	}
	report := GetString(params, "report", "")
	if report == "" {
		return "Error: report is required", nil
	}
	agent, err := t.Store.GetAgent(caller.AgentID)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if agent.IsLead() {
		return "Error: you have no lead to report to", nil
	}
	instruction := fmt.Sprintf("Review this report from %s:\n\n%s", agent.Name, report)
	task, err := t.Store.EnqueueTask(caller.Owner, agent.ParentID, caller.AgentID, instruction, store.SourceDelegation)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Report sent to lead: %s", task.TaskID), nil
}

// RequestUserInputTool records a question for the owning user. The
// question lands in the agent's foreground conversation and as a
// notification record; work continues without blocking on an answer.
type RequestUserInputTool struct {
	Store *store.Store
}

func (t *RequestUserInputTool) Name() string { return "request_user_input" }

func (t *RequestUserInputTool) Description() string {
	return "Ask the owning user a question. The question is delivered out of band; do not wait for an answer in this session."
}

func (t *RequestUserInputTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string", "description": "The question to put to the user"},
		},
		"required": []string{"question"},
	}
}

func (t *RequestUserInputTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no caller identity in context")
	}
	question := GetString(params, "question", "")
	if question == "" {
		return "Error: question is required", nil
	}

	conv, err := t.Store.GetOrCreateConversation(caller.AgentID, store.ModeForeground)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if _, err := t.Store.AppendMessage(conv.ID, store.RoleAssistant, question); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	_, err = t.Store.InsertNotification(&store.Notification{
		AgentID:   caller.AgentID,
		OwnerKind: caller.Owner.Kind,
		OwnerID:   caller.Owner.ID,
		Title:     "Input needed",
		Body:      question,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return "Question recorded for the user.", nil
}
