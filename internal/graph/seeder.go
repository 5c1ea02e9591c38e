package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tnsengimana/autonomous-teams/internal/provider"
)

// seedSchema constrains the LLM output when proposing an initial
// graph vocabulary for a new owner.
var seedSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"node_types": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
				"required": []string{"name", "description"},
			},
		},
		"edge_types": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":         map[string]any{"type": "string"},
					"description":  map[string]any{"type": "string"},
					"source_types": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"target_types": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"name", "description"},
			},
		},
	},
	"required": []string{"node_types", "edge_types"},
}

type seedProposal struct {
	NodeTypes []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"node_types"`
	EdgeTypes []struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		SourceTypes []string `json:"source_types"`
		TargetTypes []string `json:"target_types"`
	} `json:"edge_types"`
}

// Seeder proposes an initial type vocabulary for an owner's graph
// based on a description of what the owner works on.
type Seeder struct {
	store    *Store
	provider provider.LLMProvider
	logger   *slog.Logger
}

func NewSeeder(store *Store, p provider.LLMProvider, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, provider: p, logger: logger}
}

// SeedTypes asks the model for node and edge types suited to the
// owner's domain and registers the valid ones. Proposals that fail
// naming or constraint validation are skipped with a log line, not
// fatal; seeding is best effort.
func (s *Seeder) SeedTypes(ctx context.Context, ownerID, domainDescription string) error {
	req := &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "You design knowledge-graph schemas. Propose node types (TitleCase names) and edge types (lower_snake_case names) for the domain described by the user. Keep the vocabulary small and concrete."},
			{Role: provider.RoleUser, Content: domainDescription},
		},
		Model: s.provider.DefaultModel(),
	}
	var proposal seedProposal
	if err := s.provider.GenerateObject(ctx, req, seedSchema, &proposal); err != nil {
		return fmt.Errorf("seed graph types: %w", err)
	}

	for _, nt := range proposal.NodeTypes {
		_, err := s.store.CreateNodeType(&NodeType{
			OwnerID:     ownerID,
			Name:        nt.Name,
			Description: nt.Description,
			CreatedBy:   CreatedBySystem,
		})
		if err != nil {
			s.logger.Warn("skipping proposed node type", "name", nt.Name, "error", err)
		}
	}
	for _, et := range proposal.EdgeTypes {
		_, err := s.store.CreateEdgeType(&EdgeType{
			OwnerID:     ownerID,
			Name:        et.Name,
			Description: et.Description,
			SourceTypes: et.SourceTypes,
			TargetTypes: et.TargetTypes,
			CreatedBy:   CreatedBySystem,
		})
		if err != nil {
			s.logger.Warn("skipping proposed edge type", "name", et.Name, "error", err)
		}
	}
	return nil
}
