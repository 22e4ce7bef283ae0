package llm

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// ConversationMemory keeps the chat history of a conversation id so that
// successive LLM calls can see earlier turns. History is append-only per id.
// Losing history never affects SQL continuation, which travels in the token.
type ConversationMemory interface {
	History(ctx context.Context, conversationID string) []Message
	Append(ctx context.Context, conversationID string, messages ...Message)
}

// LRUMemory is an in-process ConversationMemory bounded by a number of
// conversations. The least recently used conversation is evicted when full,
// and a conversation idle for longer than the TTL is dropped on access.
type LRUMemory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
	now      func() time.Time
}

type memoryEntry struct {
	id       string
	messages []Message
	touched  time.Time
}

// NewLRUMemory creates an LRUMemory. A non-positive ttl disables expiry.
func NewLRUMemory(capacity int, ttl time.Duration) *LRUMemory {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUMemory{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// History returns a copy of the stored messages for conversationID.
func (m *LRUMemory) History(_ context.Context, conversationID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.lookup(conversationID)
	if entry == nil {
		return nil
	}
	return append([]Message(nil), entry.messages...)
}

// Append adds messages to the history of conversationID.
func (m *LRUMemory) Append(_ context.Context, conversationID string, messages ...Message) {
	if len(messages) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry := m.lookup(conversationID); entry != nil {
		entry.messages = append(entry.messages, messages...)
		return
	}

	elem := m.order.PushFront(&memoryEntry{
		id:       conversationID,
		messages: append([]Message(nil), messages...),
		touched:  m.now(),
	})
	m.entries[conversationID] = elem

	for m.order.Len() > m.capacity {
		m.remove(m.order.Back())
	}
}

// Len returns the number of conversations held.
func (m *LRUMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// lookup returns the live entry for id and marks it used, dropping it if
// expired. Caller holds mu.
func (m *LRUMemory) lookup(id string) *memoryEntry {
	elem, ok := m.entries[id]
	if !ok {
		return nil
	}

	entry := elem.Value.(*memoryEntry)
	now := m.now()
	if m.ttl > 0 && now.Sub(entry.touched) > m.ttl {
		m.remove(elem)
		return nil
	}

	entry.touched = now
	m.order.MoveToFront(elem)
	return entry
}

func (m *LRUMemory) remove(elem *list.Element) {
	entry := m.order.Remove(elem).(*memoryEntry)
	delete(m.entries, entry.id)
}

var _ ConversationMemory = (*LRUMemory)(nil)
