package store

import (
	"fmt"
	"time"
)

// OwnerKind identifies what kind of entity owns an agent.
type OwnerKind string

const (
	OwnerTeam OwnerKind = "team"
	OwnerAide OwnerKind = "aide"
)

// OwnerRef is a closed reference to an agent's owning entity.
// Exactly one owner exists per agent; a zero OwnerRef is invalid.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}

// Agent statuses.
const (
	AgentIdle    = "idle"
	AgentRunning = "running"
	AgentPaused  = "paused"
)

// Agent represents a persisted agent row.
type Agent struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TeamID          string     `json:"team_id,omitempty"`
	AideID          string     `json:"aide_id,omitempty"`
	ParentID        string     `json:"parent_id,omitempty"` // empty = lead agent
	Status          string     `json:"status"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
	BackoffAttempts int        `json:"backoff_attempts"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsLead reports whether the agent has no parent.
func (a *Agent) IsLead() bool { return a.ParentID == "" }

// Owner resolves the agent's owning entity. An agent row with neither
// or both owner columns set indicates corrupt state and is a hard error.
func (a *Agent) Owner() (OwnerRef, error) {
	switch {
	case a.TeamID != "" && a.AideID != "":
		return OwnerRef{}, fmt.Errorf("agent %s has both team and aide owner", a.ID)
	case a.TeamID != "":
		return OwnerRef{Kind: OwnerTeam, ID: a.TeamID}, nil
	case a.AideID != "":
		return OwnerRef{Kind: OwnerAide, ID: a.AideID}, nil
	default:
		return OwnerRef{}, fmt.Errorf("agent %s has no owner", a.ID)
	}
}

// Task statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// Task sources.
const (
	SourceUser       = "user"
	SourceSystem     = "system"
	SourceSelf       = "self"
	SourceDelegation = "delegation"
)

// Task represents a queued unit of background work.
type Task struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	OwnerKind   OwnerKind  `json:"owner_kind"`
	OwnerID     string     `json:"owner_id"`
	AssignedTo  string     `json:"assigned_to"`
	AssignedBy  string     `json:"assigned_by,omitempty"`
	Instruction string     `json:"instruction"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	Result      string     `json:"result,omitempty"`
	ErrorText   string     `json:"error_text,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// QueueStatus summarizes an agent's outstanding work.
type QueueStatus struct {
	Pending    int  `json:"pending"`
	InProgress int  `json:"in_progress"`
	HasWork    bool `json:"has_work"`
}

// Conversation modes.
const (
	ModeForeground = "foreground"
	ModeBackground = "background"
)

// Conversation is a per-agent, per-mode message log. An agent has at
// most one conversation per mode, created lazily.
type Conversation struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agent_id"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleSummary   = "summary"
)

// Message is a single conversation entry. Seq is strictly increasing
// within a conversation and never reused.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// KnowledgeItem is a durable takeaway extracted from a transcript.
// Items are written only by the extraction pipeline and never mutated
// afterwards, except explicit deletion.
type KnowledgeItem struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Kind         string    `json:"kind"`
	Content      string    `json:"content"`
	Confidence   float64   `json:"confidence,omitempty"`
	SourceTaskID string    `json:"source_task_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Notification is a persisted briefing surfaced to an agent's owner.
type Notification struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	team_id TEXT NOT NULL DEFAULT '',
	aide_id TEXT NOT NULL DEFAULT '',
	parent_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'idle',
	next_run_at DATETIME,
	backoff_attempts INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
CREATE INDEX IF NOT EXISTS idx_agents_next_run ON agents(next_run_at);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	owner_kind TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	assigned_to TEXT NOT NULL,
	assigned_by TEXT NOT NULL DEFAULT '',
	instruction TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	source TEXT NOT NULL DEFAULT 'system',
	result TEXT NOT NULL DEFAULT '',
	error_text TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned ON tasks(assigned_to, status);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(agent_id, mode)
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(conversation_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

CREATE TABLE IF NOT EXISTS knowledge_items (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	source_task_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_knowledge_agent ON knowledge_items(agent_id);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	owner_kind TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_notifications_owner ON notifications(owner_kind, owner_id);

CREATE TABLE IF NOT EXISTS graph_node_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	properties_schema TEXT NOT NULL DEFAULT '{}',
	example TEXT NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL DEFAULT 'system',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, name)
);

CREATE TABLE IF NOT EXISTS graph_edge_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	properties_schema TEXT NOT NULL DEFAULT '{}',
	source_types TEXT NOT NULL DEFAULT '[]',
	target_types TEXT NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL DEFAULT 'system',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, name)
);

CREATE TABLE IF NOT EXISTS graph_nodes (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	type_name TEXT NOT NULL,
	name TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, type_name, name)
);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_owner ON graph_nodes(owner_id);

CREATE TABLE IF NOT EXISTS graph_edges (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	type_name TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, type_name, source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_owner ON graph_edges(owner_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(target_id);
`
