package models

import "time"

// PlaceholderTitle is the title of a conversation until its first message arrives.
const PlaceholderTitle = "New conversation"

// Conversation is a thread between one user and one agent.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    string    `json:"userId"`
	AgentID   string    `json:"agentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	Conversation
	Agent        AgentSummary `json:"agent"`
	MessageCount int          `json:"messageCount"`
}

// ConversationDetail carries the agent, messages (oldest first) and documents (newest first).
type ConversationDetail struct {
	Conversation
	Agent     Agent      `json:"agent"`
	Messages  []Message  `json:"messages"`
	Documents []Document `json:"documents"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
