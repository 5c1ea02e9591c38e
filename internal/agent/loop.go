// Package agent runs work sessions: the tool-calling loop against the
// model, the backoff policy, the briefing decision, and the session
// controller tying them together.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tnsengimana/autonomous-teams/internal/provider"
	"github.com/tnsengimana/autonomous-teams/internal/tools"
)

// Result collects everything a finished loop run produced.
type Result struct {
	FinalText   string
	ToolCalls   []provider.ToolCall
	ToolResults []string
	Steps       int
}

// Runner drives the tool-calling round-trips for one session scope.
type Runner struct {
	Provider provider.LLMProvider
	Registry *tools.Registry
	Scope    tools.Scope
	Model    string
	MaxSteps int
}

const defaultMaxSteps = 10

// Run invokes the model with the registered tools until it answers
// without tool calls or MaxSteps rounds elapse. Unknown tools and
// handler failures are surfaced to the model as tool messages so it
// can self-correct; only transport errors abort the run.
func (r *Runner) Run(ctx context.Context, messages []provider.Message) (*Result, error) {
	return r.run(ctx, messages, nil)
}

func (r *Runner) run(ctx context.Context, messages []provider.Message, deltas chan<- string) (*Result, error) {
	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	toolDefs := r.Registry.Definitions(r.Scope)
	result := &Result{}

	for i := 0; i < maxSteps; i++ {
		result.Steps = i + 1
		req := &provider.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       r.Model,
			MaxTokens:   4096,
			Temperature: 0.7,
		}
		resp, err := r.chat(ctx, req, deltas)
		if err != nil {
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			result.FinalText = resp.Content
			return result, nil
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			out, err := r.Registry.Execute(ctx, r.Scope, tc.Name, tc.Arguments)
			if err != nil {
				out = fmt.Sprintf("Error: %v", err)
			}
			result.ToolCalls = append(result.ToolCalls, tc)
			result.ToolResults = append(result.ToolResults, out)
			messages = append(messages, provider.Message{
				Role:       provider.RoleTool,
				Content:    out,
				ToolCallID: tc.ID,
			})
			slog.Debug("Tool executed", "name", tc.Name, "result_length", len(out))
		}
	}

	result.FinalText = "Maximum tool steps reached without a final answer."
	return result, nil
}

// chat runs one model round. When a delta sink is given the round is
// streamed and fragments forwarded as they arrive.
func (r *Runner) chat(ctx context.Context, req *provider.ChatRequest, deltas chan<- string) (*provider.ChatResponse, error) {
	if deltas == nil {
		return r.Provider.Chat(ctx, req)
	}
	stream, err := r.Provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	for delta := range stream.Deltas() {
		deltas <- delta
	}
	return stream.Wait()
}

// StreamRun is a live loop run: text fragments arrive on Deltas while
// the round-trips are still in flight, the full Result on Wait.
type StreamRun struct {
	deltas chan string
	done   chan struct{}
	result *Result
	err    error
}

// Deltas returns the channel of incremental text fragments. Closed when
// the run is finished.
func (s *StreamRun) Deltas() <-chan string { return s.deltas }

// Wait blocks until the run is finished and returns the collected result.
func (s *StreamRun) Wait() (*Result, error) {
	<-s.done
	return s.result, s.err
}

// RunStream starts the loop in a goroutine and returns a live view of it.
func (r *Runner) RunStream(ctx context.Context, messages []provider.Message) *StreamRun {
	run := &StreamRun{
		deltas: make(chan string),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(run.done)
		defer close(run.deltas)
		run.result, run.err = r.run(ctx, messages, run.deltas)
	}()
	return run
}
