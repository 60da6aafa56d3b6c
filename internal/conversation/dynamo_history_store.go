package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// historyRecord is one conversation row. The table's TTL attribute is expiresAt.
type historyRecord struct {
	ConversationID string        `dynamodbav:"conversationId"`
	Messages       []ChatMessage `dynamodbav:"messages"`
	UpdatedAt      string        `dynamodbav:"updatedAt"`
	ExpiresAt      int64         `dynamodbav:"expiresAt"`
}

// DynamoHistoryStore persists chat history in a DynamoDB table keyed by conversationId.
type DynamoHistoryStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
	tracer    trace.Tracer
	logger    *logging.Logger
}

var _ HistoryStore = (*DynamoHistoryStore)(nil)

// NewDynamoHistoryStore builds a store backed by the provided DynamoDB client.
func NewDynamoHistoryStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoHistoryStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoHistoryStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
		tracer:    otel.Tracer("clinic.internal.conversation.history"),
		logger:    logger,
	}
}

func (s *DynamoHistoryStore) Save(ctx context.Context, conversationID string, history []ChatMessage) error {
	if conversationID == "" {
		return errors.New("conversation: conversation id required")
	}
	ctx, span := s.tracer.Start(ctx, "conversation.dynamo.save_history",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	now := s.now().UTC()
	item, err := attributevalue.MarshalMap(historyRecord{
		ConversationID: conversationID,
		Messages:       trimHistory(history),
		UpdatedAt:      now.Format(time.RFC3339Nano),
		ExpiresAt:      now.Add(s.ttl).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *DynamoHistoryStore) Load(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.dynamo.load_history",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to fetch history: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	var record historyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	// DynamoDB deletes expired items lazily.
	if record.ExpiresAt > 0 && record.ExpiresAt <= s.now().Unix() {
		s.logger.Debug("ignoring expired conversation history", "conversation_id", conversationID)
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return record.Messages, nil
}
