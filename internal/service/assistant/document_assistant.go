package assistant

import (
	"context"
	"database/sql"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
)

// CreateDocument records a rendered document. ID and CreatedAt are assigned here.
func (s *Service) CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	doc.ID = newID()
	doc.CreatedAt = s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, conversation_id, name, type, file_name, url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.ConversationID, doc.Name, doc.Type, doc.FileName, doc.URL, doc.CreatedAt,
	); err != nil {
		return nil, apperr.Store("create document", err)
	}
	return &doc, nil
}

// ListDocuments returns a conversation's documents newest first.
func (s *Service) ListDocuments(ctx context.Context, conversationID string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, name, type, file_name, url, created_at FROM documents
		WHERE conversation_id = ? ORDER BY created_at DESC`,
		conversationID,
	)
	if err != nil {
		return nil, apperr.Store("list documents", err)
	}
	return scanDocuments(rows)
}

// GetDocument loads a document belonging to one of the user's conversations.
func (s *Service) GetDocument(ctx context.Context, userID, documentID string) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.conversation_id, d.name, d.type, d.file_name, d.url, d.created_at
		FROM documents d JOIN conversations c ON c.id = d.conversation_id
		WHERE d.id = ? AND c.user_id = ?`,
		documentID, userID,
	).Scan(&d.ID, &d.ConversationID, &d.Name, &d.Type, &d.FileName, &d.URL, &d.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFoundf("document not found")
		}
		return nil, apperr.Store("get document", err)
	}
	return &d, nil
}

// DeleteDocument removes the row and returns it so the caller can remove the file.
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) (*models.Document, error) {
	doc, err := s.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID)
	if err != nil {
		return nil, apperr.Store("delete document", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, apperr.NotFoundf("document not found")
	}
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()
	docs := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.Name, &d.Type, &d.FileName, &d.URL, &d.CreatedAt); err != nil {
			return nil, apperr.Store("scan document", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list documents", err)
	}
	return docs, nil
}
