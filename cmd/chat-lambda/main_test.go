package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func apiEvent(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.9",
			},
		},
	}
}

func testConfig() (config, *http.Client) {
	return config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}, &http.Client{Timeout: time.Second}
}

func TestHandleHealth(t *testing.T) {
	cfg, client := testConfig()
	resp, err := handle(context.Background(), cfg, client, apiEvent(http.MethodGet, "/health"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.StatusCode, resp.Body)
	}
}

func TestHandleRejectsRoutes(t *testing.T) {
	cfg, client := testConfig()
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/chat", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/stats", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/calendly/book", http.StatusMethodNotAllowed},
		{http.MethodPost, "/admin/reset", http.StatusNotFound},
		{http.MethodGet, "/api/unknown", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		resp, err := handle(context.Background(), cfg, client, apiEvent(tt.method, tt.path))
		if err != nil {
			t.Fatalf("%s %s: unexpected error: %v", tt.method, tt.path, err)
		}
		if resp.StatusCode != tt.want {
			t.Fatalf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.want, resp.StatusCode)
		}
	}
}

func TestHandleInvalidBase64Body(t *testing.T) {
	cfg, client := testConfig()
	evt := apiEvent(http.MethodPost, "/api/calendly/book")
	evt.Body = "not-base64"
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), cfg, client, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || resp.Body != "invalid body" {
		t.Fatalf("expected 400 invalid body, got %d %q", resp.StatusCode, resp.Body)
	}
}

func TestHandleForwardsChat(t *testing.T) {
	type captured struct {
		method  string
		path    string
		headers http.Header
		body    string
	}
	reqCh := make(chan captured, 1)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqCh <- captured{method: r.Method, path: r.URL.Path, headers: r.Header.Clone(), body: string(body)}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", "req-1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"response":"hi"}`))
	}))
	defer upstream.Close()

	client := upstream.Client()
	client.Timeout = time.Second
	cfg := config{upstreamBaseURL: upstream.URL, upstreamTimeout: time.Second}

	evt := apiEvent(http.MethodPost, "/api/chat")
	evt.Body = `{"message":"hello"}`
	evt.Headers = map[string]string{
		"Content-Type":      "application/json",
		"x-conversation-id": "conv-9",
	}

	resp, err := handle(context.Background(), cfg, client, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"response":"hi"}` {
		t.Fatalf("expected upstream response, got %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Headers["content-type"] != "application/json" || resp.Headers["x-request-id"] != "req-1" {
		t.Fatalf("expected upstream headers to be forwarded, got %v", resp.Headers)
	}

	select {
	case got := <-reqCh:
		if got.method != http.MethodPost || got.path != "/api/chat" {
			t.Fatalf("unexpected upstream request %s %s", got.method, got.path)
		}
		if got.body != `{"message":"hello"}` {
			t.Fatalf("expected body to be forwarded, got %q", got.body)
		}
		if got.headers.Get("X-Conversation-Id") != "conv-9" {
			t.Fatalf("expected conversation id header, got %q", got.headers.Get("X-Conversation-Id"))
		}
		if got.headers.Get("X-Real-Ip") != "203.0.113.9" {
			t.Fatalf("expected caller ip, got %q", got.headers.Get("X-Real-Ip"))
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for upstream request")
	}
}

func TestHandleForwardsAvailabilityQuery(t *testing.T) {
	var gotQuery, gotMethod string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery, gotMethod = r.URL.RawQuery, r.Method
		_, _ = w.Write([]byte(`{"slots":[]}`))
	}))
	defer upstream.Close()

	cfg := config{upstreamBaseURL: upstream.URL, upstreamTimeout: time.Second}
	evt := apiEvent(http.MethodGet, "/api/calendly/availability")
	evt.RawQueryString = "date=2025-03-10&appointment_type=follow_up"

	resp, err := handle(context.Background(), cfg, upstream.Client(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotMethod != http.MethodGet || gotQuery != "date=2025-03-10&appointment_type=follow_up" {
		t.Fatalf("unexpected upstream request %s ?%s", gotMethod, gotQuery)
	}
}

func TestHandleUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	cfg := config{upstreamBaseURL: url, upstreamTimeout: time.Second}
	resp, err := handle(context.Background(), cfg, &http.Client{Timeout: time.Second}, apiEvent(http.MethodGet, "/api/stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without UPSTREAM_BASE_URL")
	}

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.upstreamBaseURL != "https://api.example.com" || cfg.upstreamTimeout != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}
}

func TestDecodeBodyBase64(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte("hello")),
		IsBase64Encoded: true,
	}
	decoded, err := decodeBody(evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != "hello" {
		t.Fatalf("expected decoded body, got %q", string(decoded))
	}
}
