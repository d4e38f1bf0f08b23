package models

import "time"

// Agent is a persona whose system prompt drives the completion provider.
type Agent struct {
	ID           string    `json:"id" yaml:"-"`
	Slug         string    `json:"slug" yaml:"slug"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description" yaml:"description"`
	SystemPrompt string    `json:"systemPrompt,omitempty" yaml:"system_prompt"`
	CreatedAt    time.Time `json:"createdAt" yaml:"-"`
}

type AgentSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (a Agent) Summary() AgentSummary {
	return AgentSummary{ID: a.ID, Name: a.Name, Slug: a.Slug}
}
