package graph

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

func newTestGraph(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return NewStore(s.DB())
}

func seedPersonCompany(t *testing.T, g *Store, owner string) {
	t.Helper()
	for _, nt := range []string{"Person", "Company"} {
		if _, err := g.CreateNodeType(&NodeType{OwnerID: owner, Name: nt}); err != nil {
			t.Fatalf("create node type %s: %v", nt, err)
		}
	}
	_, err := g.CreateEdgeType(&EdgeType{
		OwnerID:     owner,
		Name:        "works_at",
		SourceTypes: []string{"Person"},
		TargetTypes: []string{"Company"},
	})
	if err != nil {
		t.Fatalf("create edge type: %v", err)
	}
}

func TestNodeTypeNaming(t *testing.T) {
	g := newTestGraph(t)

	for _, bad := range []string{"", "company", "Research Paper", "Per-son"} {
		if _, err := g.CreateNodeType(&NodeType{OwnerID: "o", Name: bad}); err == nil {
			t.Fatalf("expected node type %q to be rejected", bad)
		}
	}
	if _, err := g.CreateNodeType(&NodeType{OwnerID: "o", Name: "ResearchPaper"}); err != nil {
		t.Fatalf("expected ResearchPaper accepted: %v", err)
	}
	if _, err := g.CreateNodeType(&NodeType{OwnerID: "o", Name: "ResearchPaper"}); err == nil {
		t.Fatal("expected duplicate node type to be rejected")
	}
}

func TestEdgeTypeNaming(t *testing.T) {
	g := newTestGraph(t)
	if _, err := g.CreateNodeType(&NodeType{OwnerID: "o", Name: "Person"}); err != nil {
		t.Fatalf("node type: %v", err)
	}

	for _, bad := range []string{"", "WorksAt", "works at", "_works", "works_"} {
		if _, err := g.CreateEdgeType(&EdgeType{OwnerID: "o", Name: bad}); err == nil {
			t.Fatalf("expected edge type %q to be rejected", bad)
		}
	}
	if _, err := g.CreateEdgeType(&EdgeType{OwnerID: "o", Name: "knows_of"}); err != nil {
		t.Fatalf("expected knows_of accepted: %v", err)
	}

	_, err := g.CreateEdgeType(&EdgeType{OwnerID: "o", Name: "cites", SourceTypes: []string{"Paper"}})
	if err == nil {
		t.Fatal("expected constraint on unknown node type to be rejected")
	}
}

func TestAddNodeMergeOnNaturalKey(t *testing.T) {
	g := newTestGraph(t)
	seedPersonCompany(t, g, "o")

	n1, status, err := g.AddNode("o", "Person", "Ann", map[string]any{"role": "engineer"})
	if err != nil {
		t.Fatalf("add node: %v", err)
	}
	if status != StatusCreated {
		t.Fatalf("expected created, got %s", status)
	}

	n2, status, err := g.AddNode("o", "Person", "Ann", map[string]any{"city": "Kigali"})
	if err != nil {
		t.Fatalf("re-add node: %v", err)
	}
	if status != StatusUpdated {
		t.Fatalf("expected updated, got %s", status)
	}
	if n2.ID != n1.ID {
		t.Fatalf("expected one stored node, got %s and %s", n1.ID, n2.ID)
	}
	if n2.Properties["role"] != "engineer" || n2.Properties["city"] != "Kigali" {
		t.Fatalf("expected shallow merge, got %+v", n2.Properties)
	}

	// Case matters: "person" is not a visible type.
	if _, _, err := g.AddNode("o", "person", "Bob", nil); err == nil {
		t.Fatal("expected lowercase type lookup to fail")
	}
}

func TestAddEdgeEndpointAndConstraintErrors(t *testing.T) {
	g := newTestGraph(t)
	seedPersonCompany(t, g, "o")
	g.AddNode("o", "Person", "Ann", nil)
	g.AddNode("o", "Company", "Acme", nil)

	edge, status, err := g.AddEdge("o", "works_at", "Ann", "Acme", nil)
	if err != nil {
		t.Fatalf("add edge: %v", err)
	}
	if status != StatusCreated {
		t.Fatalf("expected created, got %s", status)
	}

	again, status, err := g.AddEdge("o", "works_at", "Ann", "Acme", nil)
	if err != nil {
		t.Fatalf("re-add edge: %v", err)
	}
	if status != StatusAlreadyExists || again.ID != edge.ID {
		t.Fatalf("expected already_exists with same edge, got %s / %s", status, again.ID)
	}

	_, _, err = g.AddEdge("o", "works_at", "Ghost", "Acme", nil)
	if err == nil || !strings.Contains(err.Error(), "source") {
		t.Fatalf("expected source-not-found error, got %v", err)
	}
	_, _, err = g.AddEdge("o", "works_at", "Ann", "Nowhere Inc", nil)
	if err == nil || !strings.Contains(err.Error(), "target") {
		t.Fatalf("expected target-not-found error, got %v", err)
	}

	// Swapped endpoints violate the declared constraints.
	_, _, err = g.AddEdge("o", "works_at", "Acme", "Ann", nil)
	if err == nil || !strings.Contains(err.Error(), "works_at") {
		t.Fatalf("expected constraint violation naming the edge type, got %v", err)
	}
}

func TestAddEdgePrefersConstraintMatchingEndpoint(t *testing.T) {
	g := newTestGraph(t)
	seedPersonCompany(t, g, "o")
	g.AddNode("o", "Person", "Ann", nil)
	// A person named Acme predates the company of the same name.
	g.AddNode("o", "Person", "Acme", nil)
	company, _, err := g.AddNode("o", "Company", "Acme", nil)
	if err != nil {
		t.Fatalf("add company: %v", err)
	}

	edge, status, err := g.AddEdge("o", "works_at", "Ann", "Acme", nil)
	if err != nil {
		t.Fatalf("add edge: %v", err)
	}
	if status != StatusCreated {
		t.Fatalf("expected created, got %s", status)
	}
	if edge.TargetID != company.ID {
		t.Fatalf("expected the Company endpoint, got node %s", edge.TargetID)
	}
}

func TestQueryFiltersAndEdgeClosure(t *testing.T) {
	g := newTestGraph(t)
	seedPersonCompany(t, g, "o")
	g.AddNode("o", "Person", "Ann", nil)
	g.AddNode("o", "Person", "Bob", nil)
	g.AddNode("o", "Company", "Acme", nil)
	g.AddEdge("o", "works_at", "Ann", "Acme", nil)

	result, err := g.Query("o", QueryFilter{NodeType: "Person"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("expected 2 people, got %d", len(result.Nodes))
	}
	// Acme is outside the node set, so the works_at edge is excluded.
	if len(result.Edges) != 0 {
		t.Fatalf("expected no edges, got %d", len(result.Edges))
	}

	result, _ = g.Query("o", QueryFilter{SearchTerm: "nn"})
	if len(result.Nodes) != 1 || result.Nodes[0].Name != "Ann" {
		t.Fatalf("unexpected search result: %+v", result.Nodes)
	}

	result, _ = g.Query("o", QueryFilter{})
	if len(result.Nodes) != 3 || len(result.Edges) != 1 {
		t.Fatalf("expected full graph, got %d nodes %d edges", len(result.Nodes), len(result.Edges))
	}

	// Owners see only their own namespace.
	result, _ = g.Query("someone-else", QueryFilter{})
	if len(result.Nodes) != 0 {
		t.Fatalf("expected empty graph for other owner, got %d nodes", len(result.Nodes))
	}
}

func TestNeighborsBFS(t *testing.T) {
	g := newTestGraph(t)
	seedPersonCompany(t, g, "o")
	if _, err := g.CreateEdgeType(&EdgeType{OwnerID: "o", Name: "knows"}); err != nil {
		t.Fatalf("edge type: %v", err)
	}

	ann, _, _ := g.AddNode("o", "Person", "Ann", nil)
	g.AddNode("o", "Person", "Bob", nil)
	g.AddNode("o", "Person", "Cid", nil)
	g.AddNode("o", "Company", "Acme", nil)
	g.AddEdge("o", "knows", "Ann", "Bob", nil)
	g.AddEdge("o", "knows", "Bob", "Cid", nil)
	g.AddEdge("o", "works_at", "Cid", "Acme", nil)

	result, err := g.Neighbors(ann.ID, 1)
	if err != nil {
		t.Fatalf("neighbors depth 1: %v", err)
	}
	if len(result.Nodes) != 2 || len(result.Edges) != 1 {
		t.Fatalf("depth 1: expected 2 nodes 1 edge, got %d/%d", len(result.Nodes), len(result.Edges))
	}

	result, _ = g.Neighbors(ann.ID, 2)
	if len(result.Nodes) != 3 || len(result.Edges) != 2 {
		t.Fatalf("depth 2: expected 3 nodes 2 edges, got %d/%d", len(result.Nodes), len(result.Edges))
	}

	result, _ = g.Neighbors(ann.ID, 10)
	if len(result.Nodes) != 4 || len(result.Edges) != 3 {
		t.Fatalf("depth 10: expected whole component, got %d/%d", len(result.Nodes), len(result.Edges))
	}

	result, _ = g.Neighbors(ann.ID, 0)
	if len(result.Nodes) != 1 || len(result.Edges) != 0 {
		t.Fatalf("depth 0: expected start node only, got %d/%d", len(result.Nodes), len(result.Edges))
	}
}

func TestGlobalTypesVisibleToAllOwners(t *testing.T) {
	g := newTestGraph(t)
	if _, err := g.CreateNodeType(&NodeType{Name: "Topic"}); err != nil {
		t.Fatalf("global type: %v", err)
	}

	if _, _, err := g.AddNode("team:alpha", "Topic", "compilers", nil); err != nil {
		t.Fatalf("expected global type usable by owner: %v", err)
	}
	if _, err := g.CreateNodeType(&NodeType{OwnerID: "team:alpha", Name: "Topic"}); err == nil {
		t.Fatal("expected owner-scoped duplicate of global type to be rejected")
	}
}
