package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "chatq:conv:"

// RedisMemory is a ConversationMemory shared by every engine instance. Each
// conversation is a Redis list of JSON messages whose expiry is refreshed on
// every append.
type RedisMemory struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisMemory creates a RedisMemory. A non-positive ttl disables expiry.
func NewRedisMemory(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisMemory {
	return &RedisMemory{
		client: client,
		ttl:    ttl,
		logger: logger.Named("memory.redis"),
	}
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

// History implements ConversationMemory. Redis failures degrade to an empty
// history.
func (m *RedisMemory) History(ctx context.Context, conversationID string) []Message {
	raw, err := m.client.LRange(ctx, redisKey(conversationID), 0, -1).Result()
	if err != nil {
		m.logger.Warn("Failed to read conversation history",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return nil
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			m.logger.Debug("Skipping malformed history entry",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// Append implements ConversationMemory.
func (m *RedisMemory) Append(ctx context.Context, conversationID string, messages ...Message) {
	if len(messages) == 0 {
		return
	}

	values := make([]any, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		values = append(values, string(data))
	}

	key := redisKey(conversationID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("Failed to append conversation history",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

var _ ConversationMemory = (*RedisMemory)(nil)
