package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/config"
)

const providerOllama = "ollama"

// OllamaGateway talks to a local Ollama server through langchaingo.
type OllamaGateway struct {
	llm     *ollama.LLM
	model   string
	options []llms.CallOption
	timeout time.Duration
	logger  *zap.Logger
}

// NewOllamaGateway creates a gateway for cfg. The server is not contacted
// until the first call.
func NewOllamaGateway(cfg *config.OllamaConfig, timeout time.Duration, logger *zap.Logger) (*OllamaGateway, error) {
	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithRunnerNumCtx(cfg.NumCtx),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &OllamaGateway{
		llm:   client,
		model: cfg.Model,
		options: []llms.CallOption{
			llms.WithTemperature(cfg.Temperature),
			llms.WithMaxTokens(cfg.NumPredict),
			llms.WithTopK(cfg.TopK),
			llms.WithTopP(cfg.TopP),
		},
		timeout: timeout,
		logger:  logger.Named("llm.ollama"),
	}, nil
}

// Complete implements Gateway.
func (g *OllamaGateway) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(ollamaRole(m.Role), m.Content))
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, content, g.options...)
	if err != nil {
		g.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", annotate(err, providerOllama, g.model)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Type: ErrorTypeUnknown, Message: "no choices in response", Provider: providerOllama, Model: g.model}
	}

	g.logger.Info("LLM request completed", zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Content, nil
}

// Model implements Gateway.
func (g *OllamaGateway) Model() string {
	return g.model
}

func ollamaRole(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

var _ Gateway = (*OllamaGateway)(nil)
