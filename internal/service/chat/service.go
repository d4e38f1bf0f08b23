package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"agentdocs/internal/apperr"
	"agentdocs/internal/auth"
	"agentdocs/internal/metrics"
	"agentdocs/internal/models"
	"agentdocs/internal/service/ai"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	GetConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)
	AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	UpdateConversationTitle(ctx context.Context, conversationID, title string) error
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error
}

type Config struct {
	// StreamTimeout bounds one provider stream, independent of the client connection.
	StreamTimeout time.Duration
	TitleTimeout  time.Duration
	// PersistTimeout bounds the final assistant message write.
	PersistTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 2 * time.Minute
	}
	if c.TitleTimeout <= 0 {
		c.TitleTimeout = 5 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
	}
	return c
}

// Service runs chat exchanges: persist the user message, stream the agent's reply, persist it.
type Service struct {
	store   Store
	locker  Locker
	metrics *metrics.Collector
	logger  *slog.Logger
	cfg     Config

	mu       sync.RWMutex
	provider ai.Provider

	inflight sync.WaitGroup
}

// NewService wires the orchestrator. A nil locker disables per-conversation exclusion.
func NewService(store Store, provider ai.Provider, locker Locker, collector *metrics.Collector, logger *slog.Logger, cfg Config) *Service {
	if locker == nil {
		locker = NoopLocker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		locker:   locker,
		metrics:  collector,
		logger:   logger.With("component", "chat"),
		cfg:      cfg.withDefaults(),
	}
}

// SetProvider swaps the completion provider for subsequent sends. Test harnesses use it to inject failures.
func (s *Service) SetProvider(p ai.Provider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

func (s *Service) currentProvider() ai.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// Send validates and records a user message, then starts streaming the reply.
// Errors returned here happen before anything is streamed; later failures arrive as an error event.
func (s *Service) Send(ctx context.Context, actor auth.AuthContext, conversationID, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("content is required")
	}
	conv, err := s.store.GetConversation(ctx, actor.UserID, conversationID)
	if err != nil {
		return nil, err
	}
	agent, err := s.store.GetAgent(ctx, conv.AgentID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, conv.ID)
	if err != nil {
		if errors.Is(err, ErrConversationBusy) {
			return nil, apperr.Wrap(apperr.Conflict, "conversation already has a reply in progress", err)
		}
		return nil, apperr.Wrap(apperr.Unavailable, "acquire conversation lock", err)
	}

	prior, err := s.store.CountMessages(ctx, conv.ID)
	if err != nil {
		release()
		return nil, err
	}
	userMsg, err := s.store.AppendMessage(ctx, conv.ID, models.RoleUser, content)
	if err != nil {
		release()
		return nil, err
	}

	var title string
	if prior == 0 {
		title = s.updateTitle(ctx, conv.ID, content)
	}

	events := make(chan Event)
	x := &Exchange{
		UserMessage: userMsg,
		Title:       title,
		Events:      events,
		detached:    make(chan struct{}),
	}

	// the reply outlives the request so a disconnect cannot lose it
	streamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StreamTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		defer release()
		defer close(events)
		s.run(streamCtx, x, events, s.currentProvider(), agent, conv.ID)
	}()
	return x, nil
}

// updateTitle is best effort: failures are logged and the send goes on.
func (s *Service) updateTitle(ctx context.Context, conversationID, content string) string {
	title := SummarizeTitle(content)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TitleTimeout)
	defer cancel()
	start := time.Now()
	err := s.store.UpdateConversationTitle(ctx, conversationID, title)
	s.metrics.Record(metrics.OpTitleUpdate, time.Since(start), 0, err != nil)
	if err != nil {
		s.logger.Warn("update conversation title", "conversation_id", conversationID, "error", err)
		return ""
	}
	return title
}

func (s *Service) run(ctx context.Context, x *Exchange, out chan<- Event, provider ai.Provider, agent *models.Agent, conversationID string) {
	done := s.metrics.StreamStarted()
	defer done()
	start := time.Now()
	tokens := 0
	logger := s.logger.With("conversation_id", conversationID)

	emit := func(ev Event) {
		select {
		case out <- ev:
		case <-x.detached:
		}
	}
	fail := func(err error) {
		s.metrics.Record(metrics.OpChatStream, time.Since(start), int64(tokens), true)
		logger.Error("chat exchange failed", "error", err, "kind", apperr.KindOf(err).String())
		emit(errorEvent(err))
	}

	emit(Event{Type: EventUserMessage, ID: x.UserMessage.ID})

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		fail(err)
		return
	}

	var reply strings.Builder
	finished := false
	for chunk := range provider.Stream(ctx, ai.Request{SystemPrompt: agent.SystemPrompt, History: ai.ToTurns(history)}) {
		switch chunk.Kind {
		case ai.ChunkToken:
			tokens++
			reply.WriteString(chunk.Text)
			emit(Event{Type: EventToken, Content: chunk.Text})
		case ai.ChunkError:
			fail(chunk.Err)
			return
		case ai.ChunkDone:
			finished = true
		}
	}
	if !finished {
		err := ctx.Err()
		if err == nil {
			err = errors.New("completion stream ended without a result")
		}
		fail(apperr.Wrap(apperr.ProviderFailure, "completion stream interrupted", err))
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()
	msg, err := s.store.AppendMessage(persistCtx, conversationID, models.RoleAssistant, reply.String())
	if err != nil {
		fail(err)
		return
	}
	// the reply is already durable; a stale updatedAt only affects list ordering
	if err := s.store.TouchConversation(persistCtx, conversationID, msg.CreatedAt); err != nil {
		logger.Warn("touch conversation", "error", err)
	}
	s.metrics.Record(metrics.OpChatStream, time.Since(start), int64(tokens), false)
	emit(Event{Type: EventComplete, AssistantMessageID: msg.ID})
}

// DrainTimeout is the longest an accepted exchange can keep running: its stream bound plus the final write.
func (s *Service) DrainTimeout() time.Duration {
	return s.cfg.StreamTimeout + s.cfg.PersistTimeout
}

// Wait blocks until in-flight exchanges have finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
