package assistant

import (
	"context"
	"errors"

	"agentdocs/internal/apperr"
)

// EnsureUser creates the user row on first use. Only the stand-in user exists today.
func (s *Service) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if err == nil {
		return nil
	}
	if !isNoRows(err) {
		return apperr.Store("lookup user", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		userID, userID+"@local", "Test User", s.timestamp(),
	); err != nil {
		// a concurrent request may have created it
		if s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists) == nil {
			return nil
		}
		return apperr.Store("create user", err)
	}
	return nil
}
