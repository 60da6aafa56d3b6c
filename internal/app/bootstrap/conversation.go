package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// LLM is the completion chain handed to the agent.
type LLM struct {
	Client conversation.LLMClient
	Model  string
	close  func() error
}

// Close releases provider connections. Safe on a nil or empty LLM.
func (l *LLM) Close() error {
	if l == nil || l.close == nil {
		return nil
	}
	return l.close()
}

// BuildLLM wires Gemini as the primary provider with Bedrock as fallback.
// Either may be absent; with neither configured it returns a nil client and
// the agent replies from templates.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, bedrock *bedrockruntime.Client, m *metrics.ConversationMetrics, logger *logging.Logger) (*LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		primary, fallback conversation.LLMClient
		model             string
		closer            func() error
	)
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, key, cfg.LLMModel)
		if err != nil {
			logger.Warn("gemini client unavailable", "error", err)
		} else {
			primary, model, closer = gemini, cfg.LLMModel, gemini.Close
		}
	}
	if bedrock != nil && strings.TrimSpace(cfg.BedrockModelID) != "" {
		client := conversation.NewBedrockLLMClient(bedrock, cfg.BedrockModelID)
		if primary == nil {
			primary, model = client, cfg.BedrockModelID
		} else {
			fallback = client
		}
	}
	if primary == nil {
		logger.Warn("no LLM provider configured; chat replies will be templated")
		return &LLM{}, nil
	}

	client := conversation.NewInstrumentedLLMClient(
		conversation.NewFallbackLLMClient(primary, fallback, logger), model, m)
	logger.Info("LLM configured", "model", model, "fallback", fallback != nil)
	return &LLM{Client: client, Model: model, close: closer}, nil
}

// BuildKnowledgeBase loads the clinic FAQ document and, when an embedding
// model is configured, builds its semantic index. Index failures leave
// keyword retrieval in place.
func BuildKnowledgeBase(ctx context.Context, cfg *appconfig.Config, bedrock *bedrockruntime.Client, logger *logging.Logger) (*conversation.KnowledgeBase, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	kb, err := conversation.LoadKnowledgeBase(cfg.FAQDataPath, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load knowledge base: %w", err)
	}
	if bedrock == nil || strings.TrimSpace(cfg.BedrockEmbeddingModelID) == "" {
		return kb, nil
	}
	if err := kb.BuildIndex(ctx, conversation.NewBedrockEmbeddingClient(bedrock), cfg.BedrockEmbeddingModelID); err != nil {
		logger.Warn("knowledge base embedding index unavailable", "error", err)
	}
	return kb, nil
}

// BuildHistoryStore selects the chat history backend named by HISTORY_BACKEND.
// A backend whose client is missing yields nil and a warning.
func BuildHistoryStore(cfg *appconfig.Config, redisClient *redis.Client, dynamo *dynamodb.Client, logger *logging.Logger) conversation.HistoryStore {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.HistoryBackend {
	case "redis":
		if redisClient == nil {
			logger.Warn("redis history requested but redis is unavailable")
			return nil
		}
		logger.Info("chat history enabled", "backend", "redis", "ttl", cfg.HistoryTTL.String())
		return conversation.NewRedisHistoryStore(redisClient, cfg.HistoryTTL)
	case "dynamodb":
		if dynamo == nil {
			logger.Warn("dynamodb history requested but no client is configured")
			return nil
		}
		logger.Info("chat history enabled", "backend", "dynamodb", "table", cfg.HistoryTable)
		return conversation.NewDynamoHistoryStore(dynamo, cfg.HistoryTable, cfg.HistoryTTL, logger)
	case "", "none":
		return nil
	default:
		logger.Warn("unknown history backend; history disabled", "backend", cfg.HistoryBackend)
		return nil
	}
}
