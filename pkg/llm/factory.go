package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/config"
)

// NewGateway creates the gateway selected by cfg.Provider.
func NewGateway(cfg *config.LLMConfig, logger *zap.Logger) (Gateway, error) {
	provider := strings.ToLower(cfg.Provider)

	logger.Info("Configuring LLM gateway", zap.String("provider", provider))

	switch provider {
	case providerOpenAI:
		return NewOpenAIGateway(&cfg.OpenAI, cfg.Timeout(), logger), nil
	case providerAnthropic:
		return NewAnthropicGateway(&cfg.Anthropic, cfg.Timeout(), logger), nil
	case providerOllama:
		return NewOllamaGateway(&cfg.Ollama, cfg.Timeout(), logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
