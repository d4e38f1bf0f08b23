package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentdocs/internal/redis"
)

// ErrConversationBusy means another send holds the conversation.
var ErrConversationBusy = errors.New("conversation has a reply in progress")

// Locker grants one send at a time per conversation. release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, conversationID string) (release func(), err error)
}

// NoopLocker lets concurrent sends interleave.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// LocalLocker is an in-process lock table for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[conversationID]; busy {
		return nil, ErrConversationBusy
	}
	l.held[conversationID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, conversationID)
			l.mu.Unlock()
		})
	}, nil
}

// RedisLocker shares the lock table across instances. Locks expire after ttl so a crashed
// instance cannot wedge a conversation.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger.With("component", "chat-lock")}
}

func lockKey(conversationID string) string {
	return "agentdocs:conversation:" + conversationID + ":lock"
}

func (l *RedisLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key, token := lockKey(conversationID), uuid.NewString()
	ok, err := l.client.TryLock(ctx, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationBusy
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if _, err := l.client.Unlock(ctx, key, token); err != nil {
				l.logger.Warn("release conversation lock", "conversation_id", conversationID, "error", err)
			}
		})
	}, nil
}
