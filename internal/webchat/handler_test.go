package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type echoProcessor struct {
	mu       sync.Mutex
	requests []conversation.ChatRequest
}

func (p *echoProcessor) ProcessMessage(_ context.Context, req conversation.ChatRequest) (*conversation.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return &conversation.ChatResponse{
		Response: "echo: " + req.Message,
		Intent:   conversation.IntentFAQ,
	}, nil
}

type memoryHistory struct {
	data map[string][]conversation.ChatMessage
}

func (m *memoryHistory) Load(_ context.Context, id string) ([]conversation.ChatMessage, error) {
	msgs, ok := m.data[id]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	return msgs, nil
}

func (m *memoryHistory) Save(_ context.Context, id string, history []conversation.ChatMessage) error {
	m.data[id] = history
	return nil
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws" + query
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestConversationID(t *testing.T) {
	assert.Equal(t, "webchat:sess456", ConversationID("sess456"))
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32)
}

func TestWebSocketKeepsLocalTranscriptWithoutStore(t *testing.T) {
	proc := &echoProcessor{}
	h := NewHandler(proc, nil, logging.Discard())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "?session=abc")
	session := receive(t, conn)
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "abc", session.SessionID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	for _, text := range []string{"hello", "what are your hours"} {
		require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: text}))
		assert.Equal(t, "typing", receive(t, conn).Type)
		reply := receive(t, conn)
		assert.Equal(t, "message", reply.Type)
		assert.Equal(t, "echo: "+text, reply.Text)
		assert.Equal(t, "faq", reply.Intent)
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.requests, 2)
	assert.Empty(t, proc.requests[0].ConversationHistory)
	require.Len(t, proc.requests[1].ConversationHistory, 2)
	assert.Equal(t, "hello", proc.requests[1].ConversationHistory[0].Content)
	assert.Empty(t, proc.requests[1].ConversationID)
}

func TestWebSocketUsesStoreAndReplaysHistory(t *testing.T) {
	proc := &echoProcessor{}
	store := &memoryHistory{data: map[string][]conversation.ChatMessage{
		"webchat:s1": {
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello!"},
		},
	}}
	h := NewHandler(proc, store, logging.Discard())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "?session=s1")
	assert.Equal(t, "session", receive(t, conn).Type)
	history := receive(t, conn)
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "hello!", history.Messages[1].Text)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "book"}))
	receive(t, conn)
	receive(t, conn)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.requests, 1)
	assert.Equal(t, "webchat:s1", proc.requests[0].ConversationID)
}

func TestHandleHistory(t *testing.T) {
	store := &memoryHistory{data: map[string][]conversation.ChatMessage{
		"webchat:s1": {{Role: "user", Content: "Hello"}},
	}}
	h := NewHandler(&echoProcessor{}, store, logging.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?session=s1", nil)
	w := httptest.NewRecorder()
	h.HandleHistory(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Hello", resp.Messages[0].Text)
}

func TestHandleHistoryMissingSession(t *testing.T) {
	h := NewHandler(&echoProcessor{}, nil, logging.Discard())
	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/chat/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistoryWithoutStoreIsEmpty(t *testing.T) {
	h := NewHandler(&echoProcessor{}, nil, logging.Discard())
	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/chat/history?session=x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
}
