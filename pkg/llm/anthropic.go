package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/config"
)

const providerAnthropic = "anthropic"

// AnthropicGateway talks to the Anthropic Messages API.
type AnthropicGateway struct {
	client     *anthropic.Client
	model      string
	maxTokens  int
	timeout    time.Duration
	configured bool
	logger     *zap.Logger
}

// NewAnthropicGateway creates a gateway for cfg. As with OpenAI, a missing key
// surfaces on the first call rather than at startup.
func NewAnthropicGateway(cfg *config.AnthropicConfig, timeout time.Duration, logger *zap.Logger) *AnthropicGateway {
	return &AnthropicGateway{
		client:     anthropic.NewClient(cfg.APIKey),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		timeout:    timeout,
		configured: cfg.APIKey != "",
		logger:     logger.Named("llm.anthropic"),
	}
}

// Complete implements Gateway. System messages are lifted into the request's
// system prompt since the Messages API only accepts user and assistant turns.
func (g *AnthropicGateway) Complete(ctx context.Context, messages []Message) (string, error) {
	if !g.configured {
		return "", unconfigured(providerAnthropic, g.model, "Anthropic API key not configured")
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	var system []string
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
	}
	for _, m := range messages {
		text := m.Content
		switch m.Role {
		case RoleSystem:
			system = append(system, text)
		case RoleAssistant:
			req.Messages = append(req.Messages, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
			})
		default:
			req.Messages = append(req.Messages, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
			})
		}
	}
	req.System = strings.Join(system, "\n\n")

	start := time.Now()
	resp, err := g.client.CreateMessages(ctx, req)
	if err != nil {
		g.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", g.classify(err)
	}

	g.logger.Info("LLM request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return textFromResponse(resp), nil
}

// Model implements Gateway.
func (g *AnthropicGateway) Model() string {
	return g.model
}

func (g *AnthropicGateway) classify(err error) *Error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		if llmErr := classifyStatus(reqErr.StatusCode, err); llmErr != nil {
			llmErr.Provider, llmErr.Model = providerAnthropic, g.model
			return llmErr
		}
	}
	return annotate(err, providerAnthropic, g.model)
}

func textFromResponse(resp anthropic.MessagesResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String()
}

var _ Gateway = (*AnthropicGateway)(nil)
