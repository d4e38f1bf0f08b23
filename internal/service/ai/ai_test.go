package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"agentdocs/internal/apperr"
	"agentdocs/internal/config"
	"agentdocs/internal/models"
)

func drain(t *testing.T, ch <-chan Chunk) (tokens []string, terminal Chunk) {
	t.Helper()
	for c := range ch {
		switch c.Kind {
		case ChunkToken:
			tokens = append(tokens, c.Text)
		default:
			terminal = c
		}
	}
	return tokens, terminal
}

func TestStaticStreamsWordsThenDone(t *testing.T) {
	p := NewStatic(func(Request) string { return "hello there world" })
	tokens, term := drain(t, p.Stream(context.Background(), Request{}))

	assert.Equal(t, []string{"hello ", "there ", "world"}, tokens)
	assert.Equal(t, ChunkDone, term.Kind)
	assert.Equal(t, "hello there world", strings.Join(tokens, ""))
}

func TestStaticEmptyReplyIsDoneWithoutTokens(t *testing.T) {
	p := NewStatic(func(Request) string { return "" })
	tokens, term := drain(t, p.Stream(context.Background(), Request{}))
	assert.Empty(t, tokens)
	assert.Equal(t, ChunkDone, term.Kind)
}

func TestStaticFailAfter(t *testing.T) {
	boom := errors.New("upstream overloaded")
	p := NewStatic(func(Request) string { return "a b c d" }).FailAfter(2, boom)
	tokens, term := drain(t, p.Stream(context.Background(), Request{}))

	assert.Equal(t, []string{"a ", "b "}, tokens)
	require.Equal(t, ChunkError, term.Kind)
	assert.ErrorIs(t, term.Err, boom)
	assert.Equal(t, apperr.ProviderFailure, apperr.KindOf(term.Err))
}

func TestStaticEchoesLastUserTurn(t *testing.T) {
	p := NewStatic(nil)
	req := Request{History: []Turn{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "second"},
	}}
	tokens, _ := drain(t, p.Stream(context.Background(), req))
	assert.Equal(t, "You said: second", strings.Join(tokens, ""))
	require.Len(t, p.Calls(), 1)
}

func TestToTurnsKeepsOrder(t *testing.T) {
	turns := ToTurns([]models.Message{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	})
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Role: models.RoleUser, Content: "q2"}, turns[2])
}

func TestSchemaMessagesPutSystemPromptFirst(t *testing.T) {
	msgs := toSchemaMessages(Request{
		SystemPrompt: "be brief",
		History:      []Turn{{Role: models.RoleUser, Content: "hi"}, {Role: models.RoleAssistant, Content: "hello"}},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "be brief", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
}

func TestMessageContentMapsRoles(t *testing.T) {
	content := toMessageContent(Request{
		SystemPrompt: "sys",
		History:      []Turn{{Role: models.RoleUser, Content: "hi"}, {Role: models.RoleAssistant, Content: "yo"}},
	})
	require.Len(t, content, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[2].Role)
}

func TestEinoWithoutKeyFailsPerStream(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Default()
	p, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	tokens, term := drain(t, p.Stream(context.Background(), Request{}))
	assert.Empty(t, tokens)
	require.Equal(t, ChunkError, term.Kind)
	assert.ErrorIs(t, term.Err, errUnconfigured)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "mystery"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestProduceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewStatic(func(Request) string { return "one two three" })
	ch := p.Stream(ctx, Request{})
	first := <-ch
	assert.Equal(t, ChunkToken, first.Kind)
	cancel()
	for range ch {
	}
}
