package storage

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"agentdocs/internal/models"
)

//go:embed seed/agents.yaml
var agentCatalogue []byte

// DefaultAgents returns the built-in agent personas.
func DefaultAgents() ([]models.Agent, error) {
	var agents []models.Agent
	if err := yaml.Unmarshal(agentCatalogue, &agents); err != nil {
		return nil, fmt.Errorf("decode agent catalogue: %w", err)
	}
	for i, a := range agents {
		if a.Slug == "" || a.Name == "" || a.SystemPrompt == "" {
			return nil, fmt.Errorf("agent catalogue entry %d is incomplete", i)
		}
	}
	return agents, nil
}
