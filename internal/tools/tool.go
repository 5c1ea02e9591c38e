// Package tools provides the tool framework and implementations for the agent.
package tools

import (
	"context"
	"fmt"

	"github.com/tnsengimana/autonomous-teams/internal/provider"
)

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters.
	// Returns result string and error. On error, return user-friendly message.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Scope identifies which kind of session a tool is exposed to. A tool
// may be registered under several scopes.
type Scope string

const (
	// ScopeForeground covers interactive chat with the user.
	ScopeForeground Scope = "foreground"
	// ScopeBackgroundLead covers background work sessions of lead agents.
	ScopeBackgroundLead Scope = "background_lead"
	// ScopeBackgroundSubordinate covers background work sessions of
	// subordinate agents.
	ScopeBackgroundSubordinate Scope = "background_subordinate"
)

// Registry manages tool registration and per-scope exposure.
type Registry struct {
	tools  map[string]Tool
	scopes map[Scope]map[string]bool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		scopes: make(map[Scope]map[string]bool),
	}
}

// Register adds a tool to the registry under the given scopes.
func (r *Registry) Register(tool Tool, scopes ...Scope) {
	r.tools[tool.Name()] = tool
	for _, scope := range scopes {
		if r.scopes[scope] == nil {
			r.scopes[scope] = make(map[string]bool)
		}
		r.scopes[scope][tool.Name()] = true
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	return result
}

// ForScope returns the tools exposed to a scope.
func (r *Registry) ForScope(scope Scope) []Tool {
	names := r.scopes[scope]
	result := make([]Tool, 0, len(names))
	for name := range names {
		result = append(result, r.tools[name])
	}
	return result
}

// Definitions returns the scope's tool definitions in function-call format.
func (r *Registry) Definitions(scope Scope) []provider.ToolDefinition {
	tools := r.ForScope(scope)
	result := make([]provider.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		result = append(result, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return result
}

// Execute runs a tool by name with the given parameters. The tool must
// be exposed to the caller's scope.
func (r *Registry) Execute(ctx context.Context, scope Scope, name string, params map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	if !r.scopes[scope][name] {
		return "", fmt.Errorf("tool not available in this session: %s", name)
	}
	return tool.Execute(ctx, params)
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetMap extracts an object parameter, or nil when absent.
func GetMap(params map[string]any, key string) map[string]any {
	if v, ok := params[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}
