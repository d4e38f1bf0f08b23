package chat

import (
	"sync"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
)

type EventType string

const (
	EventUserMessage EventType = "user_message"
	EventToken       EventType = "token"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one item of an exchange stream. Its JSON form is the wire payload.
type Event struct {
	Type               EventType `json:"type"`
	ID                 string    `json:"id,omitempty"`
	Content            string    `json:"content,omitempty"`
	AssistantMessageID string    `json:"assistantMessageId,omitempty"`
	Message            string    `json:"message,omitempty"`
	Err                error     `json:"-"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Message: apperr.PublicMessage(err), Err: err}
}

// Exchange is an accepted send. Events yields user_message, any tokens, then exactly one of
// complete or error, and is closed afterwards. Consumers either drain Events or call Detach.
type Exchange struct {
	UserMessage *models.Message
	// Title is set when this send renamed the conversation.
	Title  string
	Events <-chan Event

	detached chan struct{}
	once     sync.Once
}

// Detach stops delivery. The exchange still runs to completion and persists its result.
func (x *Exchange) Detach() {
	x.once.Do(func() { close(x.detached) })
}
