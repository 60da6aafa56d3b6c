// Package webchat serves the chat agent over a WebSocket.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// InboundMessage is what the browser sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what the browser receives.
type OutboundMessage struct {
	Type                 string           `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text                 string           `json:"text,omitempty"`
	Role                 string           `json:"role,omitempty"`
	SessionID            string           `json:"session_id,omitempty"`
	Intent               string           `json:"intent,omitempty"`
	RequiresConfirmation bool             `json:"requires_confirmation,omitempty"`
	AppointmentID        string           `json:"appointment_id,omitempty"`
	WaitlistID           string           `json:"waitlist_id,omitempty"`
	Timestamp            string           `json:"timestamp,omitempty"`
	Messages             []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is one stored turn.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Handler manages chat sockets. Without a history store each connection
// keeps its own transcript in memory.
type Handler struct {
	processor conversation.Processor
	history   conversation.HistoryStore
	logger    *logging.Logger
	now       func() time.Time
}

func NewHandler(processor conversation.Processor, history conversation.HistoryStore, logger *logging.Logger) *Handler {
	if processor == nil {
		panic("webchat: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		processor: processor,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// ConversationID is the history key of a chat session.
func ConversationID(sessionID string) string {
	return "webchat:" + sessionID
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket serves GET /api/chat/ws?session=<id>.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	convID := ConversationID(sessionID)

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	if msgs := h.loadHistory(ctx, convID); len(msgs) > 0 {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: toHistoryMessages(msgs)})
	}

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	var local []conversation.ChatMessage
	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		out, reply := h.process(ctx, convID, msg.Text, local)
		if h.history == nil && reply != "" {
			local = append(local,
				conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: msg.Text},
				conversation.ChatMessage{Role: conversation.ChatRoleAssistant, Content: reply},
			)
		}
		if err := websocket.JSON.Send(conn, out); err != nil {
			h.logger.Debug("webchat: send failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

func (h *Handler) process(ctx context.Context, convID, text string, local []conversation.ChatMessage) (OutboundMessage, string) {
	req := conversation.ChatRequest{Message: text}
	if h.history != nil {
		req.ConversationID = convID
	} else {
		req.ConversationHistory = local
	}
	resp, err := h.processor.ProcessMessage(ctx, req)
	if err != nil {
		h.logger.Error("webchat: failed to process message", "error", err, "conversation_id", convID)
		return OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."}, ""
	}
	return OutboundMessage{
		Type:                 "message",
		Role:                 conversation.ChatRoleAssistant,
		Text:                 resp.Response,
		Intent:               string(resp.Intent),
		RequiresConfirmation: resp.RequiresConfirmation,
		AppointmentID:        resp.AppointmentID,
		WaitlistID:           resp.WaitlistID,
		Timestamp:            h.now().UTC().Format(time.RFC3339),
	}, resp.Response
}

// HandleHistory serves GET /api/chat/history?session=<id>.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "session parameter required"})
		return
	}
	msgs := h.loadHistory(r.Context(), ConversationID(sessionID))
	writeJSON(w, http.StatusOK, map[string]any{"messages": toHistoryMessages(msgs)})
}

func (h *Handler) loadHistory(ctx context.Context, convID string) []conversation.ChatMessage {
	if h.history == nil {
		return nil
	}
	msgs, err := h.history.Load(ctx, convID)
	if err != nil && !errors.Is(err, conversation.ErrConversationNotFound) {
		h.logger.Warn("webchat: failed to load history", "error", err, "conversation_id", convID)
	}
	return msgs
}

func toHistoryMessages(msgs []conversation.ChatMessage) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{Role: m.Role, Text: m.Content})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
