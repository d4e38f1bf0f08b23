package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"agentdocs/internal/config"
	"agentdocs/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

type einoProvider struct {
	name      string
	chatModel model.BaseChatModel
	maxTokens int
	initErr   error
}

func newEinoProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*einoProvider, error) {
	name := cfg.LLM.Provider
	provCfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", name)
	}
	p := &einoProvider{name: name, maxTokens: provCfg.MaxTokens}
	if provCfg.APIKey == "" {
		// keep serving; each stream reports the missing key
		logger.Warn("no api key configured, completions will fail")
		p.initErr = errUnconfigured
		return p, nil
	}

	var err error
	switch name {
	case "openai":
		p.chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: provCfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		p.chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		p.chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: provCfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", name, err)
	}
	return p, nil
}

func (p *einoProvider) Name() string { return "eino/" + p.name }

func (p *einoProvider) Stream(ctx context.Context, req Request) <-chan Chunk {
	if p.initErr != nil {
		return failed(ctx, p.initErr)
	}
	return produce(ctx, func(emit func(string) error) error {
		reader, err := p.chatModel.Stream(ctx, toSchemaMessages(req), model.WithMaxTokens(p.maxTokens))
		if err != nil {
			return fmt.Errorf("open stream: %w", err)
		}
		defer reader.Close()
		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if msg == nil {
				continue
			}
			if err := emit(msg.Content); err != nil {
				return err
			}
		}
	})
}

func toSchemaMessages(req Request) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.SystemPrompt})
	}
	for _, turn := range req.History {
		var role schema.RoleType
		switch turn.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: turn.Content})
	}
	return messages
}
