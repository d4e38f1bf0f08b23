package ai

import (
	"context"
	"fmt"
	"log/slog"

	"agentdocs/internal/config"
	"agentdocs/internal/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type langchainProvider struct {
	name      string
	llm       llms.Model
	maxTokens int
	initErr   error
}

func newLangchainProvider(cfg *config.Config, logger *slog.Logger) (*langchainProvider, error) {
	name := cfg.LLM.Provider
	provCfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", name)
	}
	p := &langchainProvider{name: name, maxTokens: provCfg.MaxTokens}
	if provCfg.APIKey == "" && name != "ollama" {
		logger.Warn("no api key configured, completions will fail")
		p.initErr = errUnconfigured
		return p, nil
	}

	var err error
	switch name {
	case "claude", "anthropic":
		opts := []anthropic.Option{anthropic.WithToken(provCfg.APIKey), anthropic.WithModel(provCfg.Model)}
		if provCfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(provCfg.BaseURL))
		}
		p.llm, err = anthropic.New(opts...)
	case "openai":
		opts := []openai.Option{openai.WithToken(provCfg.APIKey), openai.WithModel(provCfg.Model)}
		if provCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(provCfg.BaseURL))
		}
		p.llm, err = openai.New(opts...)
	case "ollama":
		p.llm, err = ollama.New(ollama.WithModel(provCfg.Model), ollama.WithServerURL(provCfg.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", name, err)
	}
	return p, nil
}

func (p *langchainProvider) Name() string { return "langchain/" + p.name }

func (p *langchainProvider) Stream(ctx context.Context, req Request) <-chan Chunk {
	if p.initErr != nil {
		return failed(ctx, p.initErr)
	}
	return produce(ctx, func(emit func(string) error) error {
		_, err := p.llm.GenerateContent(ctx, toMessageContent(req),
			llms.WithMaxTokens(p.maxTokens),
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				return emit(string(chunk))
			}),
		)
		return err
	})
}

func toMessageContent(req Request) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, turn := range req.History {
		msgType := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			msgType = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(msgType, turn.Content))
	}
	return content
}
