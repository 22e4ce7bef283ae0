package llm

import (
	"context"
	"sync"
)

// MockGateway is a configurable Gateway for tests. Replies are served from
// Replies in order unless CompleteFunc is set.
type MockGateway struct {
	mu sync.Mutex

	// CompleteFunc, when set, handles every call.
	CompleteFunc func(ctx context.Context, messages []Message) (string, error)

	// Replies are returned one per call. Once exhausted, Err (or "") is returned.
	Replies []string
	Err     error

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Calls records the messages of every call.
	Calls [][]Message
}

// NewMockGateway returns a mock that answers with replies in order.
func NewMockGateway(replies ...string) *MockGateway {
	return &MockGateway{Replies: replies}
}

// Complete implements Gateway.
func (m *MockGateway) Complete(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]Message(nil), messages...))
	fn := m.CompleteFunc
	var reply string
	served := false
	if fn == nil && len(m.Replies) > 0 {
		reply, m.Replies = m.Replies[0], m.Replies[1:]
		served = true
	}
	err := m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	if served {
		return reply, nil
	}
	return "", err
}

// Model implements Gateway.
func (m *MockGateway) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// CallCount returns the number of Complete calls so far.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastPrompt returns the content of the final message of the most recent call.
func (m *MockGateway) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return ""
	}
	last := m.Calls[len(m.Calls)-1]
	if len(last) == 0 {
		return ""
	}
	return last[len(last)-1].Content
}

var _ Gateway = (*MockGateway)(nil)
