package tools

import (
	"context"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// Caller identifies the agent on whose behalf a tool executes. It
// travels through context so tools can enforce identity-based rules
// without widening the Tool interface.
type Caller struct {
	AgentID string
	Owner   store.OwnerRef
	Lead    bool
}

type callerKey struct{}

// WithCaller attaches a caller identity to the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom extracts the caller identity from the context.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
