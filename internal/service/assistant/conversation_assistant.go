package assistant

import (
	"context"
	"strings"
	"time"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
)

// CreateConversation opens a conversation with the placeholder title for the given user and agent.
func (s *Service) CreateConversation(ctx context.Context, userID, agentID string) (*models.Conversation, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, apperr.Invalid("agentId is required")
	}
	if _, err := s.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	if err := s.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}
	now := s.timestamp()
	conv := &models.Conversation{
		ID:        newID(),
		Title:     models.PlaceholderTitle,
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, user_id, agent_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.UserID, conv.AgentID, conv.CreatedAt, conv.UpdatedAt,
	); err != nil {
		return nil, apperr.Store("create conversation", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversations by last activity with agent summary and message count.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.user_id, c.agent_id, c.created_at, c.updated_at, a.name, a.slug,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c JOIN agents a ON a.id = c.agent_id
		WHERE c.user_id = ?
		ORDER BY c.updated_at DESC, c.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, apperr.Store("list conversations", err)
	}
	defer rows.Close()

	list := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var cs models.ConversationSummary
		if err := rows.Scan(&cs.ID, &cs.Title, &cs.UserID, &cs.AgentID, &cs.CreatedAt, &cs.UpdatedAt,
			&cs.Agent.Name, &cs.Agent.Slug, &cs.MessageCount); err != nil {
			return nil, apperr.Store("scan conversation", err)
		}
		cs.Agent.ID = cs.AgentID
		list = append(list, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list conversations", err)
	}
	return list, nil
}

// GetConversation loads one conversation owned by the user.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, user_id, agent_id, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&c.ID, &c.Title, &c.UserID, &c.AgentID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFoundf("conversation not found")
		}
		return nil, apperr.Store("get conversation", err)
	}
	return &c, nil
}

// GetConversationDetail returns the conversation with its agent, messages (oldest first) and documents (newest first).
func (s *Service) GetConversationDetail(ctx context.Context, userID, conversationID string) (*models.ConversationDetail, error) {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	agent, err := s.GetAgent(ctx, conv.AgentID)
	if err != nil {
		return nil, err
	}
	messages, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	documents, err := s.ListDocuments(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &models.ConversationDetail{
		Conversation: *conv,
		Agent:        *agent,
		Messages:     messages,
		Documents:    documents,
	}, nil
}

// DeleteConversation removes a conversation with its messages and documents and
// returns the deleted documents so their files can be removed.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) (docs []models.Document, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Store("begin tx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND user_id = ?`, conversationID, userID,
	).Scan(&exists); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFoundf("conversation not found")
		}
		return nil, apperr.Store("get conversation", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, conversation_id, name, type, file_name, url, created_at FROM documents WHERE conversation_id = ?`,
		conversationID,
	)
	if err != nil {
		return nil, apperr.Store("list documents", err)
	}
	docs, err = scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	for _, stmt := range []string{
		`DELETE FROM documents WHERE conversation_id = ?`,
		`DELETE FROM messages WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, conversationID); err != nil {
			return nil, apperr.Store("delete conversation", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, apperr.Store("commit delete conversation", err)
	}
	return docs, nil
}

// UpdateConversationTitle sets a conversation title.
func (s *Service) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperr.Invalid("title cannot be empty")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, conversationID)
	if err != nil {
		return apperr.Store("update conversation title", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Store("conversation rows affected", err)
	}
	if affected == 0 {
		return apperr.NotFoundf("conversation not found")
	}
	return nil
}

// TouchConversation bumps updated_at.
func (s *Service) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	if at.IsZero() {
		at = s.timestamp()
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, at.UTC(), conversationID,
	); err != nil {
		return apperr.Store("touch conversation", err)
	}
	return nil
}
