package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Processor handles one chat turn.
type Processor interface {
	ProcessMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Handler wires HTTP requests to the chat agent.
type Handler struct {
	processor Processor
	validate  *validator.Validate
	logger    *logging.Logger
}

// NewHandler creates a chat handler.
func NewHandler(processor Processor, logger *logging.Logger) *Handler {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		processor: processor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Message: "message is required"})
		return
	}

	resp, err := h.processor.ProcessMessage(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			h.writeJSON(w, http.StatusBadRequest, errorBody{Message: "message is required"})
			return
		}
		h.logger.Error("failed to process chat message", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Error processing message"})
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
