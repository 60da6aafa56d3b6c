package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/internal/waitlist"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// ErrEmptyMessage is returned for blank chat messages.
var ErrEmptyMessage = errors.New("conversation: message is required")

// Scheduler is the slice of the scheduling engine the agent drives.
type Scheduler interface {
	Availability(ctx context.Context, q scheduling.AvailabilityQuery) []scheduling.CandidateSlot
	Book(ctx context.Context, req scheduling.BookingRequest) (scheduling.Appointment, error)
	Doctors() []string
	Today() string
}

// Waitlist accepts patients when no slot suits them.
type Waitlist interface {
	Add(ctx context.Context, req waitlist.Request) waitlist.Entry
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message             string        `json:"message" validate:"required"`
	ConversationHistory []ChatMessage `json:"conversation_history,omitempty" validate:"omitempty,dive"`
	ConversationID      string        `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
}

// ChatResponse is the agent's reply to one turn.
type ChatResponse struct {
	Response             string `json:"response"`
	Intent               Intent `json:"intent"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	ConversationID       string `json:"conversation_id,omitempty"`
	AppointmentID        string `json:"appointment_id,omitempty"`
	WaitlistID           string `json:"waitlist_id,omitempty"`
}

// Responders label how a reply was produced, for metrics.
const (
	responderLLM      = "llm"
	responderTemplate = "template"
	responderEngine   = "engine"
	responderGuard    = "guard"
)

const (
	llmTemperature = 0.7
	llmMaxTokens   = 500
	// candidateSearchLimit is large enough to see every slot of a day when
	// resolving a requested time.
	candidateSearchLimit = 1000
)

var (
	confirmationKeywords = []string{"yes", "confirm", "book it", "that works", "sounds good"}
	rescheduleKeywords   = []string{"reschedule", "change appointment", "move appointment"}
)

// Agent answers chat turns: FAQ questions from the knowledge base and
// scheduling requests against the engine.
type Agent struct {
	scheduler Scheduler
	waitlist  Waitlist
	nlu       NLU
	kb        *KnowledgeBase
	llm       LLMClient
	model     string
	history   HistoryStore
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger
}

type AgentOption func(*Agent)

// WithLLM sets the completion client; without one every reply is templated.
func WithLLM(client LLMClient, model string) AgentOption {
	return func(a *Agent) {
		a.llm = client
		a.model = model
	}
}

func WithKnowledgeBase(kb *KnowledgeBase) AgentOption {
	return func(a *Agent) { a.kb = kb }
}

func WithWaitlist(w Waitlist) AgentOption {
	return func(a *Agent) { a.waitlist = w }
}

func WithNLU(n NLU) AgentOption {
	return func(a *Agent) {
		if n != nil {
			a.nlu = n
		}
	}
}

func WithHistoryStore(store HistoryStore) AgentOption {
	return func(a *Agent) { a.history = store }
}

func WithConversationMetrics(m *metrics.ConversationMetrics) AgentOption {
	return func(a *Agent) { a.metrics = m }
}

func NewAgent(scheduler Scheduler, logger *logging.Logger, opts ...AgentOption) *Agent {
	if scheduler == nil {
		panic("conversation: scheduler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Agent{
		scheduler: scheduler,
		nlu:       NewRuleBasedNLU(nil),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// turn is the agent's working state for one message.
type turn struct {
	message string
	history []ChatMessage
	// llmAllowed is false when the message failed screening.
	llmAllowed bool
	resp       ChatResponse
	responder  string
}

// ProcessMessage handles one chat turn. When req.ConversationID is set and a
// history store is configured, stored history is used in place of an empty
// request history and the new exchange is appended afterwards.
func (a *Agent) ProcessMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	history := req.ConversationHistory
	if req.ConversationID != "" && a.history != nil && len(history) == 0 {
		stored, err := a.history.Load(ctx, req.ConversationID)
		switch {
		case err == nil:
			history = stored
		case errors.Is(err, ErrConversationNotFound):
		default:
			a.logger.Warn("failed to load conversation history", "error", err, "conversation_id", req.ConversationID)
		}
	}

	t := &turn{message: message, history: history, llmAllowed: true}
	screen := ScreenMessage(message)
	if screen.Score >= guardWarnThreshold {
		a.logger.Warn("chat message flagged by prompt guard", "score", screen.Score, "reasons", screen.Reasons, "blocked", screen.Blocked)
		t.message = SanitizeForLLM(message)
	}

	if screen.Blocked {
		t.llmAllowed = false
		t.resp = ChatResponse{Response: blockedReply, Intent: a.classify(t)}
		t.responder = responderGuard
	} else {
		t.resp.Intent = a.classify(t)
		if t.resp.Intent == IntentFAQ {
			a.answerFAQ(ctx, t)
		} else {
			a.handleScheduling(ctx, t)
		}
	}

	a.metrics.ObserveMessage(string(t.resp.Intent), t.responder)
	a.logger.Debug("chat turn handled", "intent", t.resp.Intent, "responder", t.responder, "requires_confirmation", t.resp.RequiresConfirmation)

	if req.ConversationID != "" {
		t.resp.ConversationID = req.ConversationID
		a.persist(ctx, req.ConversationID, history, message, t.resp.Response)
	}
	return &t.resp, nil
}

func (a *Agent) persist(ctx context.Context, id string, history []ChatMessage, message, reply string) {
	if a.history == nil {
		return
	}
	updated := make([]ChatMessage, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		ChatMessage{Role: ChatRoleUser, Content: message},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	)
	if err := a.history.Save(ctx, id, updated); err != nil {
		a.logger.Warn("failed to save conversation history", "error", err, "conversation_id", id)
	}
}

// classify keeps a pending booking or waitlist step in scheduling when the
// patient answers it, then defers to the NLU.
func (a *Agent) classify(t *turn) Intent {
	if pendingStep(t.history) != stepNone {
		lower := strings.ToLower(t.message)
		if containsAny(lower, confirmationKeywords) || mentionsContact(t.message) {
			return IntentScheduling
		}
	}
	return a.nlu.ClassifyIntent(t.message, t.history)
}

func (a *Agent) answerFAQ(ctx context.Context, t *turn) {
	info := a.kb.Info()
	faqContext := NoFAQMatch
	if a.kb != nil {
		faqContext = a.kb.Retrieve(ctx, t.message)
	}
	reply, err := a.complete(ctx, t, faqPrompt(info), faqUserPrompt(t.message, t.history, faqContext))
	if err != nil {
		t.resp.Response = faqFallback(faqContext, info)
		t.responder = responderTemplate
		return
	}
	t.resp.Response = reply
	t.responder = responderLLM
}

func (a *Agent) complete(ctx context.Context, t *turn, system, prompt string) (string, error) {
	if a.llm == nil || !t.llmAllowed {
		return "", errors.New("conversation: llm unavailable")
	}
	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.model,
		System:      []string{system},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   llmMaxTokens,
		Temperature: llmTemperature,
	})
	if err != nil {
		a.logger.Warn("llm completion failed, using template reply", "error", err)
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("conversation: empty llm reply")
	}
	return resp.Text, nil
}
