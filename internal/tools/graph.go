package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tnsengimana/autonomous-teams/internal/graph"
)

// graphOwner resolves the graph namespace for the calling agent. All
// graph tools read and write the caller's owner namespace.
func graphOwner(ctx context.Context) (string, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no caller identity in context")
	}
	return caller.Owner.String(), nil
}

// CreateNodeTool adds or merges a node in the caller's graph.
type CreateNodeTool struct {
	Graph *graph.Store
}

func (t *CreateNodeTool) Name() string { return "create_node" }

func (t *CreateNodeTool) Description() string {
	return "Add a node to the knowledge graph. If a node with the same type and name already exists, the given properties are merged into it."
}

func (t *CreateNodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":       map[string]any{"type": "string", "description": "Node type name, e.g. Person"},
			"name":       map[string]any{"type": "string", "description": "Unique name of the node within its type"},
			"properties": map[string]any{"type": "object", "description": "Free-form properties to set on the node"},
		},
		"required": []string{"type", "name"},
	}
}

func (t *CreateNodeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ownerID, err := graphOwner(ctx)
	if err != nil {
		return "", err
	}
	typeName := GetString(params, "type", "")
	name := GetString(params, "name", "")
	node, status, err := t.Graph.AddNode(ownerID, typeName, name, GetMap(params, "properties"))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Node %s (%s %q)", status, node.TypeName, node.Name), nil
}

// CreateEdgeTool connects two existing nodes.
type CreateEdgeTool struct {
	Graph *graph.Store
}

func (t *CreateEdgeTool) Name() string { return "create_edge" }

func (t *CreateEdgeTool) Description() string {
	return "Connect two existing nodes with a typed edge. Source and target are referenced by node name. Re-creating an existing edge is a no-op."
}

func (t *CreateEdgeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":       map[string]any{"type": "string", "description": "Edge type name, e.g. works_at"},
			"source":     map[string]any{"type": "string", "description": "Name of the source node"},
			"target":     map[string]any{"type": "string", "description": "Name of the target node"},
			"properties": map[string]any{"type": "object", "description": "Free-form edge properties"},
		},
		"required": []string{"type", "source", "target"},
	}
}

func (t *CreateEdgeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ownerID, err := graphOwner(ctx)
	if err != nil {
		return "", err
	}
	edge, status, err := t.Graph.AddEdge(ownerID,
		GetString(params, "type", ""),
		GetString(params, "source", ""),
		GetString(params, "target", ""),
		GetMap(params, "properties"))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Edge %s (%s)", status, edge.TypeName), nil
}

// QueryGraphTool searches the caller's graph.
type QueryGraphTool struct {
	Graph *graph.Store
}

func (t *QueryGraphTool) Name() string { return "query_graph" }

func (t *QueryGraphTool) Description() string {
	return "Search the knowledge graph by node type and/or name substring. Returns matching nodes and the edges between them."
}

func (t *QueryGraphTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"node_type": map[string]any{"type": "string", "description": "Restrict results to this node type"},
			"search":    map[string]any{"type": "string", "description": "Substring to match against node names"},
			"limit":     map[string]any{"type": "integer", "description": "Maximum number of nodes (default 100)"},
		},
	}
}

func (t *QueryGraphTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ownerID, err := graphOwner(ctx)
	if err != nil {
		return "", err
	}
	result, err := t.Graph.Query(ownerID, graph.QueryFilter{
		NodeType:   GetString(params, "node_type", ""),
		SearchTerm: GetString(params, "search", ""),
		Limit:      GetInt(params, "limit", 0),
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if len(result.Nodes) == 0 {
		return "No matching nodes.", nil
	}
	return renderGraphResult(result), nil
}

// NeighborsTool expands the graph around a node.
type NeighborsTool struct {
	Graph *graph.Store
}

func (t *NeighborsTool) Name() string { return "neighbors" }

func (t *NeighborsTool) Description() string {
	return "Walk outward from a node and return everything within the given number of hops, in both edge directions."
}

func (t *NeighborsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"node_type": map[string]any{"type": "string", "description": "Type of the starting node"},
			"name":      map[string]any{"type": "string", "description": "Name of the starting node"},
			"depth":     map[string]any{"type": "integer", "description": "Maximum hops from the start (default 1)"},
		},
		"required": []string{"node_type", "name"},
	}
}

func (t *NeighborsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ownerID, err := graphOwner(ctx)
	if err != nil {
		return "", err
	}
	node, err := t.Graph.GetNode(ownerID, GetString(params, "node_type", ""), GetString(params, "name", ""))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if node == nil {
		return fmt.Sprintf("Error: node not found: %s", GetString(params, "name", "")), nil
	}
	result, err := t.Graph.Neighbors(node.ID, GetInt(params, "depth", 1))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return renderGraphResult(result), nil
}

// CreateNodeTypeTool declares a new node type in the caller's namespace.
type CreateNodeTypeTool struct {
	Graph *graph.Store
}

func (t *CreateNodeTypeTool) Name() string { return "create_node_type" }

func (t *CreateNodeTypeTool) Description() string {
	return "Declare a new node type. Names must be TitleCase, e.g. ResearchPaper."
}

func (t *CreateNodeTypeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "description": "TitleCase type name"},
			"description": map[string]any{"type": "string", "description": "What this type of node represents"},
		},
		"required": []string{"name", "description"},
	}
}

func (t *CreateNodeTypeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ownerID, err := graphOwner(ctx)
	if err != nil {
		return "", err
	}
	nt, err := t.Graph.CreateNodeType(&graph.NodeType{
		OwnerID:     ownerID,
		Name:        GetString(params, "name", ""),
		Description: GetString(params, "description", ""),
		CreatedBy:   graph.CreatedByAgent,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Node type created: %s", nt.Name), nil
}

// CreateEdgeTypeTool declares a new edge type in the caller's namespace.
type CreateEdgeTypeTool struct {
	Graph *graph.Store
}

func (t *CreateEdgeTypeTool) Name() string { return "create_edge_type" }

func (t *CreateEdgeTypeTool) Description() string {
	return "Declare a new edge type. Names must be lower_snake_case, e.g. works_at. Optional source/target constraints restrict which node types the edge may connect."
}

func (t *CreateEdgeTypeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":         map[string]any{"type": "string", "description": "lower_snake_case type name"},
			"description":  map[string]any{"type": "string", "description": "What this relationship means"},
			"source_types": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Allowed source node types (empty = any)"},
			"target_types": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Allowed target node types (empty = any)"},
		},
		"required": []string{"name", "description"},
	}
}

func (t *CreateEdgeTypeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ownerID, err := graphOwner(ctx)
	if err != nil {
		return "", err
	}
	et, err := t.Graph.CreateEdgeType(&graph.EdgeType{
		OwnerID:     ownerID,
		Name:        GetString(params, "name", ""),
		Description: GetString(params, "description", ""),
		SourceTypes: getStringSlice(params, "source_types"),
		TargetTypes: getStringSlice(params, "target_types"),
		CreatedBy:   graph.CreatedByAgent,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Edge type created: %s", et.Name), nil
}

func getStringSlice(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func renderGraphResult(result *graph.QueryResult) string {
	var b strings.Builder
	byID := make(map[string]string, len(result.Nodes))
	fmt.Fprintf(&b, "Nodes (%d):\n", len(result.Nodes))
	for _, n := range result.Nodes {
		byID[n.ID] = n.Name
		fmt.Fprintf(&b, "- %s %q", n.TypeName, n.Name)
		if len(n.Properties) > 0 {
			if data, err := json.Marshal(n.Properties); err == nil {
				fmt.Fprintf(&b, " %s", data)
			}
		}
		b.WriteString("\n")
	}
	if len(result.Edges) > 0 {
		fmt.Fprintf(&b, "Edges (%d):\n", len(result.Edges))
		for _, e := range result.Edges {
			fmt.Fprintf(&b, "- %q -[%s]-> %q\n", byID[e.SourceID], e.TypeName, byID[e.TargetID])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
