package assistant

import (
	"context"
	"fmt"
	"strings"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
)

// ListAgents returns every agent ordered by name, without system prompts.
func (s *Service) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, name, description, created_at FROM agents ORDER BY name ASC`,
	)
	if err != nil {
		return nil, apperr.Store("list agents", err)
	}
	defer rows.Close()

	agents := make([]models.Agent, 0)
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.Description, &a.CreatedAt); err != nil {
			return nil, apperr.Store("scan agent", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list agents", err)
	}
	return agents, nil
}

// GetAgentBySlug returns the full agent including its system prompt.
func (s *Service) GetAgentBySlug(ctx context.Context, slug string) (*models.Agent, error) {
	return s.getAgent(ctx, `slug = ?`, strings.TrimSpace(slug))
}

func (s *Service) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	return s.getAgent(ctx, `id = ?`, id)
}

func (s *Service) getAgent(ctx context.Context, where string, arg string) (*models.Agent, error) {
	var a models.Agent
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, description, system_prompt, created_at FROM agents WHERE `+where, arg,
	).Scan(&a.ID, &a.Slug, &a.Name, &a.Description, &a.SystemPrompt, &a.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFoundf("agent not found")
		}
		return nil, apperr.Store("get agent", err)
	}
	return &a, nil
}

// SeedAgents inserts agents whose slug is not present yet and returns how many were created.
func (s *Service) SeedAgents(ctx context.Context, agents []models.Agent) (int, error) {
	created := 0
	for _, a := range agents {
		if _, err := s.GetAgentBySlug(ctx, a.Slug); err == nil {
			continue
		} else if apperr.KindOf(err) != apperr.NotFound {
			return created, err
		}
		if _, err := s.CreateAgent(ctx, a); err != nil {
			return created, fmt.Errorf("seed agent %s: %w", a.Slug, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) CreateAgent(ctx context.Context, a models.Agent) (*models.Agent, error) {
	a.Slug = strings.TrimSpace(a.Slug)
	if a.Slug == "" || strings.TrimSpace(a.Name) == "" {
		return nil, apperr.Invalid("agent slug and name are required")
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, slug, name, description, system_prompt, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Slug, a.Name, a.Description, a.SystemPrompt, a.CreatedAt,
	); err != nil {
		return nil, apperr.Store("create agent", err)
	}
	return &a, nil
}
