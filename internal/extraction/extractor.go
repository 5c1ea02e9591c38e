// Package extraction distills finished transcripts into durable
// knowledge items. Extraction is a wrap-up step: any failure here is
// downgraded to "nothing extracted" so it can never abort a session.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/tnsengimana/autonomous-teams/internal/provider"
	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// Item kinds by session mode. Background work yields operational
// knowledge; foreground chat yields knowledge about the user.
var (
	BackgroundKinds = []string{"fact", "technique", "pattern", "lesson"}
	ForegroundKinds = []string{"preference", "insight", "fact"}
)

// Item is one extracted takeaway before persistence.
type Item struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence,omitempty"`
}

const systemPrompt = `You review a work transcript and extract zero or more durable takeaways worth remembering for future work. Only extract non-trivial items: %s. Emitting nothing is a normal outcome when the transcript holds nothing worth keeping.`

// Extractor runs transcript distillation through the model.
type Extractor struct {
	Provider provider.LLMProvider
	Logger   *slog.Logger
}

func itemSchema(kinds []string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":       map[string]any{"type": "string", "enum": kinds},
						"content":    map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					},
					"required": []string{"type", "content"},
				},
			},
		},
		"required": []string{"items"},
	}
}

// Extract asks the model for takeaways from a transcript, constrained
// to the given kinds. Model or schema failures return an empty slice;
// the error is logged, never propagated.
func (e *Extractor) Extract(ctx context.Context, transcript string, kinds []string) []Item {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	req := &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: fmt.Sprintf(systemPrompt, strings.Join(kinds, ", "))},
			{Role: provider.RoleUser, Content: transcript},
		},
		Model: e.Provider.DefaultModel(),
	}
	var out struct {
		Items []Item `json:"items"`
	}
	if err := e.Provider.GenerateObject(ctx, req, itemSchema(kinds), &out); err != nil {
		logger.Warn("Extraction produced nothing", "error", err)
		return nil
	}

	valid := out.Items[:0]
	for _, item := range out.Items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		if !slices.Contains(kinds, item.Type) {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

// Persist writes extracted items as individually addressable records.
func Persist(s *store.Store, agentID string, items []Item, sourceTaskID string) error {
	for _, item := range items {
		_, err := s.InsertKnowledgeItem(&store.KnowledgeItem{
			AgentID:      agentID,
			Kind:         item.Type,
			Content:      item.Content,
			Confidence:   item.Confidence,
			SourceTaskID: sourceTaskID,
		})
		if err != nil {
			return fmt.Errorf("persist knowledge item: %w", err)
		}
	}
	return nil
}

// BuildContextBlock renders stored items grouped by kind into a block
// suitable for inclusion in a system prompt. Empty input renders to "".
func BuildContextBlock(items []store.KnowledgeItem) string {
	if len(items) == 0 {
		return ""
	}
	byKind := map[string][]string{}
	var order []string
	for _, item := range items {
		if _, seen := byKind[item.Kind]; !seen {
			order = append(order, item.Kind)
		}
		byKind[item.Kind] = append(byKind[item.Kind], item.Content)
	}

	var b strings.Builder
	b.WriteString("## Accumulated knowledge\n")
	for _, kind := range order {
		fmt.Fprintf(&b, "\n### %s\n", kind)
		for _, content := range byKind[kind] {
			fmt.Fprintf(&b, "- %s\n", content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
