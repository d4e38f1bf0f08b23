package assistant

import (
	"context"
	"fmt"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
)

// AppendMessage stores a message at the end of a conversation.
func (s *Service) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, apperr.Invalid(fmt.Sprintf("unsupported role %q", role))
	}
	msg := &models.Message{
		ID:             newID(),
		Role:           role,
		Content:        content,
		ConversationID: conversationID,
		CreatedAt:      s.timestamp(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	); err != nil {
		return nil, apperr.Store("insert message", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages in append order.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC, seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, apperr.Store("scan message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list messages", err)
	}
	return messages, nil
}

func (s *Service) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID,
	).Scan(&n); err != nil {
		return 0, apperr.Store("count messages", err)
	}
	return n, nil
}
