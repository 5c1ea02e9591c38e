package store

import (
	"fmt"

	"github.com/google/uuid"
)

// InsertKnowledgeItem persists a single extracted takeaway.
func (s *Store) InsertKnowledgeItem(item *KnowledgeItem) (*KnowledgeItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AgentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO knowledge_items (id, agent_id, kind, content, confidence, source_task_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.AgentID, item.Kind, item.Content, item.Confidence, item.SourceTaskID)
	if err != nil {
		return nil, fmt.Errorf("insert knowledge item: %w", err)
	}
	return item, nil
}

// ListKnowledgeItems returns an agent's knowledge items, oldest first.
func (s *Store) ListKnowledgeItems(agentID string, limit int) ([]KnowledgeItem, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(`
		SELECT id, agent_id, kind, content, confidence, source_task_id, created_at
		FROM knowledge_items WHERE agent_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list knowledge items: %w", err)
	}
	defer rows.Close()

	var items []KnowledgeItem
	for rows.Next() {
		var it KnowledgeItem
		if err := rows.Scan(&it.ID, &it.AgentID, &it.Kind, &it.Content, &it.Confidence, &it.SourceTaskID, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeleteKnowledgeItem removes an item by id (explicit user/tool action;
// the only mutation allowed after extraction).
func (s *Store) DeleteKnowledgeItem(id string) error {
	res, err := s.db.Exec(`DELETE FROM knowledge_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete knowledge item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("knowledge item not found: %s", id)
	}
	return nil
}

// InsertNotification persists a briefing record for an agent's owner.
func (s *Store) InsertNotification(n *Notification) (*Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, agent_id, owner_kind, owner_id, title, body)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.AgentID, string(n.OwnerKind), n.OwnerID, n.Title, n.Body)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns notifications for an owner, newest first.
func (s *Store) ListNotifications(owner OwnerRef, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, agent_id, owner_kind, owner_id, title, body, created_at
		FROM notifications WHERE owner_kind = ? AND owner_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, string(owner.Kind), owner.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.AgentID, &kind, &n.OwnerID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.OwnerKind = OwnerKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}
