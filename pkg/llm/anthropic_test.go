package llm

import (
	"context"
	"testing"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/config"
)

func TestAnthropicGateway_MissingKey(t *testing.T) {
	gateway := NewAnthropicGateway(&config.AnthropicConfig{Model: "claude-3-5-haiku-latest", MaxTokens: 64}, time.Second, zap.NewNop())

	_, err := gateway.Complete(context.Background(), []Message{UserMessage("q")})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeUnconfigured, errorType(err))
	assert.Equal(t, "claude-3-5-haiku-latest", gateway.Model())
}

func TestTextFromResponse(t *testing.T) {
	first, second := "select 1", " from dual"
	resp := anthropic.MessagesResponse{
		Content: []anthropic.MessageContent{
			{Type: "text", Text: &first},
			{Type: "tool_use"},
			{Type: "text", Text: &second},
		},
	}

	assert.Equal(t, "select 1 from dual", textFromResponse(resp))
}
