package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentdocs/internal/apperr"
	"agentdocs/internal/config"
	"agentdocs/internal/models"
)

type ChunkKind int

const (
	ChunkToken ChunkKind = iota
	ChunkDone
	ChunkError
)

// Chunk is one item of a provider stream: a token, the normal end, or a failure.
type Chunk struct {
	Kind ChunkKind
	Text string
	Err  error
}

// Turn is a history entry in the provider's {role, content} shape.
type Turn struct {
	Role    models.Role
	Content string
}

type Request struct {
	SystemPrompt string
	History      []Turn
}

// Provider streams a completion. The channel carries zero or more ChunkToken followed by
// exactly one ChunkDone or ChunkError, then closes. If ctx ends first the terminal chunk may be dropped.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) <-chan Chunk
}

// ToTurns maps persisted messages, in order, to provider turns.
func ToTurns(messages []models.Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// New builds the provider selected by cfg.LLM.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ai", "backend", cfg.LLM.Backend, "provider", cfg.LLM.Provider)
	switch cfg.LLM.Backend {
	case "static":
		return NewStatic(nil), nil
	case "langchain":
		return newLangchainProvider(cfg, logger)
	case "eino", "":
		return newEinoProvider(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", cfg.LLM.Backend)
	}
}

// errUnconfigured is streamed when a provider was built without credentials, so the failure surfaces per request.
var errUnconfigured = errors.New("completion provider is not configured")

// produce runs fn on its own goroutine and frames what it emits as chunks.
// fn returns nil for a normal end.
func produce(ctx context.Context, fn func(emit func(string) error) error) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		emit := func(text string) error {
			if text == "" {
				return nil
			}
			select {
			case out <- Chunk{Kind: ChunkToken, Text: text}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		final := Chunk{Kind: ChunkDone}
		if err := fn(emit); err != nil {
			final = Chunk{Kind: ChunkError, Err: apperr.Wrap(apperr.ProviderFailure, "completion stream", err)}
		}
		select {
		case out <- final:
		case <-ctx.Done():
		}
	}()
	return out
}

// failed returns a stream that only reports err.
func failed(ctx context.Context, err error) <-chan Chunk {
	return produce(ctx, func(func(string) error) error { return err })
}
