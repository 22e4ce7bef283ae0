package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/config"
)

const providerOpenAI = "openai"

// OpenAIGateway talks to the OpenAI chat completions API or any endpoint
// compatible with it.
type OpenAIGateway struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	configured  bool
	logger      *zap.Logger
}

// NewOpenAIGateway creates a gateway for cfg. A missing API key does not fail
// construction; every call then returns an ErrorTypeUnconfigured error.
func NewOpenAIGateway(cfg *config.OpenAIConfig, timeout time.Duration, logger *zap.Logger) *OpenAIGateway {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIGateway{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		configured:  cfg.APIKey != "",
		logger:      logger.Named("llm.openai"),
	}
}

// Complete implements Gateway.
func (g *OpenAIGateway) Complete(ctx context.Context, messages []Message) (string, error) {
	if !g.configured {
		return "", unconfigured(providerOpenAI, g.model, "OpenAI API key not configured")
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", g.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Type: ErrorTypeUnknown, Message: "no choices in response", Provider: providerOpenAI, Model: g.model}
	}

	g.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Model implements Gateway.
func (g *OpenAIGateway) Model() string {
	return g.model
}

func (g *OpenAIGateway) classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if llmErr := classifyStatus(apiErr.HTTPStatusCode, err); llmErr != nil {
			llmErr.Provider, llmErr.Model = providerOpenAI, g.model
			return llmErr
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if llmErr := classifyStatus(reqErr.HTTPStatusCode, err); llmErr != nil {
			llmErr.Provider, llmErr.Model = providerOpenAI, g.model
			return llmErr
		}
	}
	return annotate(err, providerOpenAI, g.model)
}

func openAIRole(r Role) string {
	switch r {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

var _ Gateway = (*OpenAIGateway)(nil)
