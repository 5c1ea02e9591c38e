// Package graph implements the typed knowledge-graph store agents read
// and write during background work. Nodes and edges carry declared
// types; node creation merges on the (owner, type, name) natural key so
// duplicate insert attempts from LLM output are tolerated.
package graph

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WriteStatus reports what a write operation actually did.
type WriteStatus string

const (
	StatusCreated       WriteStatus = "created"
	StatusUpdated       WriteStatus = "updated"
	StatusAlreadyExists WriteStatus = "already_exists"
)

// Creator tags for graph types.
const (
	CreatedBySystem = "system"
	CreatedByAgent  = "agent"
	CreatedByUser   = "user"
)

// NodeType declares a category of node. OwnerID "" makes the type
// global (visible to all owners).
type NodeType struct {
	ID               int64          `json:"id"`
	OwnerID          string         `json:"owner_id,omitempty"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	PropertiesSchema map[string]any `json:"properties_schema,omitempty"`
	Example          map[string]any `json:"example,omitempty"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
}

// EdgeType declares a category of edge. Non-empty SourceTypes /
// TargetTypes constrain which node types an edge may connect.
type EdgeType struct {
	ID               int64          `json:"id"`
	OwnerID          string         `json:"owner_id,omitempty"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	PropertiesSchema map[string]any `json:"properties_schema,omitempty"`
	SourceTypes      []string       `json:"source_types,omitempty"`
	TargetTypes      []string       `json:"target_types,omitempty"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Node is a typed, named graph node with free-form properties.
type Node struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	TypeName   string         `json:"type"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Edge connects two nodes under a declared edge type.
type Edge struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	TypeName   string         `json:"type"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// QueryFilter selects nodes for Query.
type QueryFilter struct {
	NodeType   string
	SearchTerm string
	Limit      int
}

// QueryResult bundles nodes with the edges connecting them.
type QueryResult struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Store provides graph persistence over a shared database handle.
type Store struct {
	db *sql.DB
}

// NewStore creates a graph store on an already-open database. The
// schema is applied by the owning store.Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func marshalProps(props map[string]any) string {
	if len(props) == 0 {
		return "{}"
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalProps(raw string) map[string]any {
	if raw == "" || raw == "{}" {
		return nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil
	}
	return props
}

func marshalNames(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalNames(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	return names
}

// --- Type management ---

// CreateNodeType declares a node type. Name must be title-case and
// unique within the owner's visible namespace.
func (s *Store) CreateNodeType(t *NodeType) (*NodeType, error) {
	if err := validateNodeTypeName(t.Name); err != nil {
		return nil, err
	}
	if existing, err := s.GetNodeType(t.OwnerID, t.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("node type already exists: %s", t.Name)
	}
	if t.CreatedBy == "" {
		t.CreatedBy = CreatedBySystem
	}
	res, err := s.db.Exec(`
		INSERT INTO graph_node_types (owner_id, name, description, properties_schema, example, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.OwnerID, t.Name, t.Description, marshalProps(t.PropertiesSchema), marshalProps(t.Example), t.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("create node type: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return t, nil
}

// GetNodeType resolves a node type visible to the owner: an owner-scoped
// type first, then a global one. Returns (nil, nil) when not found. The
// lookup is case-sensitive.
func (s *Store) GetNodeType(ownerID, name string) (*NodeType, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, name, description, properties_schema, example, created_by, created_at
		FROM graph_node_types
		WHERE name = ? AND owner_id IN (?, '')
		ORDER BY owner_id DESC LIMIT 1
	`, name, ownerID)

	var t NodeType
	var schema, example string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &schema, &example, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node type: %w", err)
	}
	t.PropertiesSchema = unmarshalProps(schema)
	t.Example = unmarshalProps(example)
	return &t, nil
}

// ListNodeTypes returns the node types visible to an owner.
func (s *Store) ListNodeTypes(ownerID string) ([]NodeType, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, name, description, properties_schema, example, created_by, created_at
		FROM graph_node_types WHERE owner_id IN (?, '')
		ORDER BY name ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list node types: %w", err)
	}
	defer rows.Close()

	var types []NodeType
	for rows.Next() {
		var t NodeType
		var schema, example string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &schema, &example, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.PropertiesSchema = unmarshalProps(schema)
		t.Example = unmarshalProps(example)
		types = append(types, t)
	}
	return types, rows.Err()
}

// CreateEdgeType declares an edge type. Name must be lower_snake_case;
// any declared source/target constraints must reference existing node
// types visible to the owner.
func (s *Store) CreateEdgeType(t *EdgeType) (*EdgeType, error) {
	if err := validateEdgeTypeName(t.Name); err != nil {
		return nil, err
	}
	if existing, err := s.GetEdgeType(t.OwnerID, t.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("edge type already exists: %s", t.Name)
	}
	for _, name := range append(slices.Clone(t.SourceTypes), t.TargetTypes...) {
		nt, err := s.GetNodeType(t.OwnerID, name)
		if err != nil {
			return nil, err
		}
		if nt == nil {
			return nil, fmt.Errorf("edge type constraint references unknown node type: %s", name)
		}
	}
	if t.CreatedBy == "" {
		t.CreatedBy = CreatedBySystem
	}
	res, err := s.db.Exec(`
		INSERT INTO graph_edge_types (owner_id, name, description, properties_schema, source_types, target_types, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.OwnerID, t.Name, t.Description, marshalProps(t.PropertiesSchema), marshalNames(t.SourceTypes), marshalNames(t.TargetTypes), t.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("create edge type: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return t, nil
}

// GetEdgeType resolves an edge type visible to the owner. Returns
// (nil, nil) when not found.
func (s *Store) GetEdgeType(ownerID, name string) (*EdgeType, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, name, description, properties_schema, source_types, target_types, created_by, created_at
		FROM graph_edge_types
		WHERE name = ? AND owner_id IN (?, '')
		ORDER BY owner_id DESC LIMIT 1
	`, name, ownerID)

	var t EdgeType
	var schema, sources, targets string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &schema, &sources, &targets, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get edge type: %w", err)
	}
	t.PropertiesSchema = unmarshalProps(schema)
	t.SourceTypes = unmarshalNames(sources)
	t.TargetTypes = unmarshalNames(targets)
	return &t, nil
}

// ListEdgeTypes returns the edge types visible to an owner.
func (s *Store) ListEdgeTypes(ownerID string) ([]EdgeType, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, name, description, properties_schema, source_types, target_types, created_by, created_at
		FROM graph_edge_types WHERE owner_id IN (?, '')
		ORDER BY name ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list edge types: %w", err)
	}
	defer rows.Close()

	var types []EdgeType
	for rows.Next() {
		var t EdgeType
		var schema, sources, targets string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &schema, &sources, &targets, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.PropertiesSchema = unmarshalProps(schema)
		t.SourceTypes = unmarshalNames(sources)
		t.TargetTypes = unmarshalNames(targets)
		types = append(types, t)
	}
	return types, rows.Err()
}

// --- Nodes ---

const nodeColumns = `id, owner_id, type_name, name, properties, created_at, updated_at`

func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.OwnerID, &n.TypeName, &n.Name, &props, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

// AddNode inserts a node, or shallow-merges properties into an existing
// node with the same (owner, type, name) key. The type must exist and
// be visible to the owner.
func (s *Store) AddNode(ownerID, typeName, name string, properties map[string]any) (*Node, WriteStatus, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", fmt.Errorf("node name is required")
	}
	nt, err := s.GetNodeType(ownerID, typeName)
	if err != nil {
		return nil, "", err
	}
	if nt == nil {
		return nil, "", fmt.Errorf("node type does not exist: %s", typeName)
	}

	existing, err := s.GetNode(ownerID, typeName, name)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		merged := existing.Properties
		if merged == nil {
			merged = map[string]any{}
		}
		for k, v := range properties {
			merged[k] = v
		}
		_, err := s.db.Exec(`
			UPDATE graph_nodes SET properties = ?, updated_at = datetime('now')
			WHERE id = ?
		`, marshalProps(merged), existing.ID)
		if err != nil {
			return nil, "", fmt.Errorf("merge node: %w", err)
		}
		existing.Properties = merged
		return existing, StatusUpdated, nil
	}

	node := &Node{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		TypeName:   nt.Name,
		Name:       name,
		Properties: properties,
	}
	_, err = s.db.Exec(`
		INSERT INTO graph_nodes (id, owner_id, type_name, name, properties)
		VALUES (?, ?, ?, ?, ?)
	`, node.ID, node.OwnerID, node.TypeName, node.Name, marshalProps(properties))
	if err != nil {
		return nil, "", fmt.Errorf("insert node: %w", err)
	}
	return s.getNodeByID(node.ID, StatusCreated)
}

func (s *Store) getNodeByID(id string, status WriteStatus) (*Node, WriteStatus, error) {
	row := s.db.QueryRow(`SELECT `+nodeColumns+` FROM graph_nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err != nil {
		return nil, "", fmt.Errorf("get node: %w", err)
	}
	return n, status, nil
}

// GetNode returns a node by its natural key, or (nil, nil) if absent.
func (s *Store) GetNode(ownerID, typeName, name string) (*Node, error) {
	row := s.db.QueryRow(`
		SELECT `+nodeColumns+` FROM graph_nodes
		WHERE owner_id = ? AND type_name = ? AND name = ?
	`, ownerID, typeName, name)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// findNodeByName resolves a node by name alone, preferring the oldest
// match when several types share the name.
func (s *Store) findNodeByName(ownerID, name string) (*Node, error) {
	row := s.db.QueryRow(`
		SELECT `+nodeColumns+` FROM graph_nodes
		WHERE owner_id = ? AND name = ?
		ORDER BY created_at ASC, id ASC LIMIT 1
	`, ownerID, name)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find node: %w", err)
	}
	return n, nil
}

// resolveEndpoint resolves an edge endpoint by name. When the edge type
// constrains the endpoint, a node of an allowed type wins over an older
// node of another type sharing the name; unconstrained resolution falls
// back to oldest-first.
func (s *Store) resolveEndpoint(ownerID, name string, allowedTypes []string) (*Node, error) {
	if len(allowedTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(allowedTypes)), ", ")
		args := []any{ownerID, name}
		for _, t := range allowedTypes {
			args = append(args, t)
		}
		row := s.db.QueryRow(`
			SELECT `+nodeColumns+` FROM graph_nodes
			WHERE owner_id = ? AND name = ? AND type_name IN (`+placeholders+`)
			ORDER BY created_at ASC, id ASC LIMIT 1
		`, args...)
		n, err := scanNode(row)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find node: %w", err)
		}
	}
	return s.findNodeByName(ownerID, name)
}

// --- Edges ---

const edgeColumns = `id, owner_id, type_name, source_id, target_id, properties, created_at`

func scanEdge(row interface{ Scan(...any) error }) (*Edge, error) {
	var e Edge
	var props string
	err := row.Scan(&e.ID, &e.OwnerID, &e.TypeName, &e.SourceID, &e.TargetID, &props, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Properties = unmarshalProps(props)
	return &e, nil
}

// AddEdge creates an edge between two nodes resolved by name. The edge
// type must exist; if it declares source/target constraints, both
// endpoints' node types must satisfy them. Re-adding an identical edge
// reports already_exists rather than erroring.
func (s *Store) AddEdge(ownerID, typeName, sourceName, targetName string, properties map[string]any) (*Edge, WriteStatus, error) {
	et, err := s.GetEdgeType(ownerID, typeName)
	if err != nil {
		return nil, "", err
	}
	if et == nil {
		return nil, "", fmt.Errorf("edge type does not exist: %s", typeName)
	}

	source, err := s.resolveEndpoint(ownerID, sourceName, et.SourceTypes)
	if err != nil {
		return nil, "", err
	}
	if source == nil {
		return nil, "", fmt.Errorf("source node not found: %s", sourceName)
	}
	target, err := s.resolveEndpoint(ownerID, targetName, et.TargetTypes)
	if err != nil {
		return nil, "", err
	}
	if target == nil {
		return nil, "", fmt.Errorf("target node not found: %s", targetName)
	}

	if len(et.SourceTypes) > 0 && !slices.Contains(et.SourceTypes, source.TypeName) {
		return nil, "", fmt.Errorf("edge type %s requires source in [%s], got %s",
			et.Name, strings.Join(et.SourceTypes, ", "), source.TypeName)
	}
	if len(et.TargetTypes) > 0 && !slices.Contains(et.TargetTypes, target.TypeName) {
		return nil, "", fmt.Errorf("edge type %s requires target in [%s], got %s",
			et.Name, strings.Join(et.TargetTypes, ", "), target.TypeName)
	}

	row := s.db.QueryRow(`
		SELECT `+edgeColumns+` FROM graph_edges
		WHERE owner_id = ? AND type_name = ? AND source_id = ? AND target_id = ?
	`, ownerID, et.Name, source.ID, target.ID)
	existing, err := scanEdge(row)
	if err == nil {
		return existing, StatusAlreadyExists, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("get edge: %w", err)
	}

	edge := &Edge{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		TypeName:   et.Name,
		SourceID:   source.ID,
		TargetID:   target.ID,
		Properties: properties,
	}
	_, err = s.db.Exec(`
		INSERT INTO graph_edges (id, owner_id, type_name, source_id, target_id, properties)
		VALUES (?, ?, ?, ?, ?, ?)
	`, edge.ID, edge.OwnerID, edge.TypeName, edge.SourceID, edge.TargetID, marshalProps(properties))
	if err != nil {
		return nil, "", fmt.Errorf("insert edge: %w", err)
	}
	edge.CreatedAt = time.Now()
	return edge, StatusCreated, nil
}

// --- Queries ---

// Query returns nodes matching the filter plus the edges whose
// endpoints are both within the returned node set.
func (s *Store) Query(ownerID string, filter QueryFilter) (*QueryResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + nodeColumns + ` FROM graph_nodes WHERE owner_id = ?`
	args := []any{ownerID}
	if filter.NodeType != "" {
		query += ` AND type_name = ?`
		args = append(args, filter.NodeType)
	}
	if filter.SearchTerm != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+filter.SearchTerm+"%")
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	result := &QueryResult{}
	inSet := map[string]bool{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result.Nodes = append(result.Nodes, *n)
		inSet[n.ID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result.Nodes) == 0 {
		return result, nil
	}

	edgeRows, err := s.db.Query(`SELECT `+edgeColumns+` FROM graph_edges WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		e, err := scanEdge(edgeRows)
		if err != nil {
			return nil, err
		}
		if inSet[e.SourceID] && inSet[e.TargetID] {
			result.Edges = append(result.Edges, *e)
		}
	}
	return result, edgeRows.Err()
}

// Neighbors walks outward from a node up to depth hops (breadth-first,
// both edge directions) and returns the visited nodes and traversed
// edges. Each edge appears at most once.
func (s *Store) Neighbors(nodeID string, depth int) (*QueryResult, error) {
	if depth < 0 {
		depth = 0
	}
	start, _, err := s.getNodeByID(nodeID, StatusCreated)
	if err != nil {
		return nil, fmt.Errorf("node not found: %s", nodeID)
	}

	visited := map[string]Node{start.ID: *start}
	seenEdges := map[string]Edge{}
	frontier := []string{start.ID}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			edges, err := s.edgesTouching(start.OwnerID, id)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if _, ok := seenEdges[e.ID]; ok {
					continue
				}
				seenEdges[e.ID] = e
				for _, endpoint := range []string{e.SourceID, e.TargetID} {
					if _, ok := visited[endpoint]; ok {
						continue
					}
					n, _, err := s.getNodeByID(endpoint, StatusCreated)
					if err != nil {
						return nil, err
					}
					visited[endpoint] = *n
					next = append(next, endpoint)
				}
			}
		}
		frontier = next
	}

	result := &QueryResult{}
	for _, n := range visited {
		result.Nodes = append(result.Nodes, n)
	}
	for _, e := range seenEdges {
		result.Edges = append(result.Edges, e)
	}
	slices.SortFunc(result.Nodes, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(result.Edges, func(a, b Edge) int { return strings.Compare(a.ID, b.ID) })
	return result, nil
}

func (s *Store) edgesTouching(ownerID, nodeID string) ([]Edge, error) {
	rows, err := s.db.Query(`
		SELECT `+edgeColumns+` FROM graph_edges
		WHERE owner_id = ? AND (source_id = ? OR target_id = ?)
	`, ownerID, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("edges touching: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}
