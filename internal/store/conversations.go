package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetOrCreateConversation returns the agent's conversation for the
// given mode, creating it on first use.
func (s *Store) GetOrCreateConversation(agentID, mode string) (*Conversation, error) {
	if mode != ModeForeground && mode != ModeBackground {
		return nil, fmt.Errorf("invalid conversation mode: %q", mode)
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (agent_id, mode) VALUES (?, ?)
		ON CONFLICT(agent_id, mode) DO NOTHING
	`, agentID, mode)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	var c Conversation
	err = s.db.QueryRow(`
		SELECT id, agent_id, mode, created_at FROM conversations
		WHERE agent_id = ? AND mode = ?
	`, agentID, mode).Scan(&c.ID, &c.AgentID, &c.Mode, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// appendMessageTx inserts a message with the next sequence number
// inside an existing transaction. The UNIQUE(conversation_id, seq)
// constraint rejects reuse if two writers race.
func appendMessageTx(tx *sql.Tx, conversationID int64, role, content string) error {
	_, err := tx.Exec(`
		INSERT INTO messages (conversation_id, seq, role, content)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?
		FROM messages WHERE conversation_id = ?
	`, conversationID, role, content, conversationID)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// AppendMessage adds a message to a conversation, assigning the next
// sequence value.
func (s *Store) AppendMessage(conversationID int64, role, content string) (*Message, error) {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem, RoleSummary:
	default:
		return nil, fmt.Errorf("invalid message role: %q", role)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	if err := appendMessageTx(tx, conversationID, role, content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	row := s.db.QueryRow(`
		SELECT id, conversation_id, seq, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY seq DESC LIMIT 1
	`, conversationID)
	return scanMessage(row)
}

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

// ListMessages returns all messages of a conversation in sequence order.
func (s *Store) ListMessages(conversationID int64) ([]Message, error) {
	return s.listMessagesAfter(conversationID, 0)
}

// MessagesAfter returns messages with seq strictly greater than afterSeq.
func (s *Store) MessagesAfter(conversationID, afterSeq int64) ([]Message, error) {
	return s.listMessagesAfter(conversationID, afterSeq)
}

func (s *Store) listMessagesAfter(conversationID, afterSeq int64) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, seq, role, content, created_at
		FROM messages WHERE conversation_id = ? AND seq > ?
		ORDER BY seq ASC
	`, conversationID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// LatestSummary returns the newest summary message of a conversation,
// or nil if the conversation has never been compacted.
func (s *Store) LatestSummary(conversationID int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT id, conversation_id, seq, role, content, created_at
		FROM messages WHERE conversation_id = ? AND role = 'summary'
		ORDER BY seq DESC LIMIT 1
	`, conversationID)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// CountMessages returns the total message count of a conversation.
func (s *Store) CountMessages(conversationID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
