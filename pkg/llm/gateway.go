// Package llm provides chat gateways to the supported LLM providers, the
// conversation memory shared across turns, and extraction of aliases and SQL
// from model replies.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat exchange.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage is shorthand for a RoleUser message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage is shorthand for a RoleAssistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Gateway sends a chat exchange to a model and returns the text of its reply.
// Implementations return *Error for provider failures.
type Gateway interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Converse performs one memory-backed chat call. With a non-empty
// conversationID the prior history is prepended and the prompt and reply are
// appended afterwards; with an empty id the call is stateless.
func Converse(ctx context.Context, gateway Gateway, memory ConversationMemory, conversationID, prompt string) (string, error) {
	user := UserMessage(prompt)

	if conversationID == "" || memory == nil {
		return gateway.Complete(ctx, []Message{user})
	}

	messages := append(memory.History(ctx, conversationID), user)

	reply, err := gateway.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	memory.Append(ctx, conversationID, user, AssistantMessage(reply))
	return reply, nil
}
