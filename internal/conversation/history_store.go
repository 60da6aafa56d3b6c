package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultHistoryTTL applies when HISTORY_TTL is unset.
	DefaultHistoryTTL = 24 * time.Hour
	// maxStoredTurns bounds persisted history; prompts only use the tail anyway.
	maxStoredTurns = 50
)

// ErrConversationNotFound is returned by Load for unknown or expired conversations.
var ErrConversationNotFound = errors.New("conversation: unknown conversation")

// HistoryStore persists chat history between turns.
type HistoryStore interface {
	Load(ctx context.Context, conversationID string) ([]ChatMessage, error)
	Save(ctx context.Context, conversationID string, history []ChatMessage) error
}

// RedisHistoryStore keeps each conversation as one JSON value with a TTL.
type RedisHistoryStore struct {
	redis  redis.Cmdable
	ttl    time.Duration
	tracer trace.Tracer
}

var _ HistoryStore = (*RedisHistoryStore)(nil)

func NewRedisHistoryStore(client redis.Cmdable, ttl time.Duration) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &RedisHistoryStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinic.internal.conversation.history"),
	}
}

func (s *RedisHistoryStore) Save(ctx context.Context, conversationID string, history []ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	data, err := json.Marshal(trimHistory(history))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Load(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

func trimHistory(history []ChatMessage) []ChatMessage {
	if len(history) > maxStoredTurns {
		return history[len(history)-maxStoredTurns:]
	}
	return history
}
