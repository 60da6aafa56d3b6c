package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation as exchanged with the chat API.
type ChatMessage struct {
	Role    string `json:"role" dynamodbav:"role"`
	Content string `json:"content" dynamodbav:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// InstrumentedLLMClient records completion latency per model and status.
type InstrumentedLLMClient struct {
	next    LLMClient
	model   string
	metrics *metrics.ConversationMetrics
}

func NewInstrumentedLLMClient(next LLMClient, model string, m *metrics.ConversationMetrics) *InstrumentedLLMClient {
	if next == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &InstrumentedLLMClient{next: next, model: model, metrics: m}
}

func (c *InstrumentedLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	started := time.Now()
	resp, err := c.next.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	c.metrics.ObserveLLMLatency(model, status, time.Since(started).Seconds())
	return resp, err
}
