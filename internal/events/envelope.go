package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Envelope carries one event between publisher and delivery handlers.
type Envelope struct {
	ID        uuid.UUID       `json:"event_id"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the payload into dst.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Publisher accepts events produced by the scheduling engine and waitlist.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

var (
	errMissingType = errors.New("events: event type is required")
	nowFunc        = time.Now
)

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return Envelope{}, errMissingType
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	return Envelope{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: nowFunc().UTC(),
	}, nil
}

// InlinePublisher hands each event straight to a handler, for deployments
// without a Postgres outbox.
type InlinePublisher struct {
	handler DeliveryHandler
}

func NewInlinePublisher(handler DeliveryHandler) *InlinePublisher {
	if handler == nil {
		panic("events: delivery handler required")
	}
	return &InlinePublisher{handler: handler}
}

func (p *InlinePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	return p.handler.Handle(ctx, env)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// MultiHandler delivers to every handler and joins their errors.
type MultiHandler []DeliveryHandler

func (m MultiHandler) Handle(ctx context.Context, env Envelope) error {
	var errs []error
	for _, h := range m {
		if h == nil {
			continue
		}
		if err := h.Handle(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
