package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type outboxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events in Postgres for reliable delivery.
type OutboxStore struct {
	db outboxDB
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{db: pool}
}

func newOutboxStoreWithDB(db outboxDB) *OutboxStore {
	if db == nil {
		panic("events: db required")
	}
	return &OutboxStore{db: db}
}

// Publish appends the event to the outbox.
func (s *OutboxStore) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	return s.Insert(ctx, env)
}

func (s *OutboxStore) Insert(ctx context.Context, env Envelope) error {
	query := `
		INSERT INTO outbox (id, type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, env.ID, env.Type, []byte(env.Payload), env.CreatedAt); err != nil {
		return fmt.Errorf("events: insert outbox: %w", err)
	}
	return nil
}

// FetchPending returns undelivered entries that have failed fewer than
// maxAttempts times, oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32, maxAttempts int) ([]Envelope, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < $2
		ORDER BY created_at
		LIMIT $1`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var pending []Envelope
	for rows.Next() {
		var (
			env Envelope
			raw []byte
		)
		if err := rows.Scan(&env.ID, &env.Type, &raw, &env.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		env.Payload = append([]byte(nil), raw...)
		pending = append(pending, env)
	}
	return pending, rows.Err()
}

// MarkDelivered reports false when another deliverer got there first.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE outbox SET delivered_at = now() WHERE id = $1 AND delivered_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordFailure bumps the attempt counter and keeps the latest error text.
func (s *OutboxStore) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := s.db.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, msg); err != nil {
		return fmt.Errorf("events: record failure: %w", err)
	}
	return nil
}

// DeliveryOptions tune the outbox poll loop. Zero values use the defaults.
type DeliveryOptions struct {
	BatchSize   int32
	Interval    time.Duration
	MaxAttempts int
}

func (o DeliveryOptions) withDefaults() DeliveryOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 25
	}
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

// Deliverer hands outbox entries to a DeliveryHandler until they succeed or
// run out of attempts.
type Deliverer struct {
	store   *OutboxStore
	handler DeliveryHandler
	opts    DeliveryOptions
	logger  *logging.Logger
}

func NewDeliverer(store *OutboxStore, handler DeliveryHandler, opts DeliveryOptions, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{store: store, handler: handler, opts: opts.withDefaults(), logger: logger}
}

// Start drains the outbox every interval until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	tick := time.NewTicker(d.opts.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were marked delivered.
func (d *Deliverer) Drain(ctx context.Context) int {
	pending, err := d.store.FetchPending(ctx, d.opts.BatchSize, d.opts.MaxAttempts)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, env := range pending {
		if herr := d.handler.Handle(ctx, env); herr != nil {
			d.logger.Error("outbox delivery failed", "error", herr, "event_id", env.ID, "type", env.Type)
			if err := d.store.RecordFailure(ctx, env.ID, herr); err != nil {
				d.logger.Error("failed to record outbox failure", "error", err, "event_id", env.ID)
			}
			continue
		}
		marked, err := d.store.MarkDelivered(ctx, env.ID)
		switch {
		case err != nil:
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", env.ID)
		case marked:
			delivered++
			d.logger.Debug("outbox delivered", "event_id", env.ID, "type", env.Type)
		}
	}
	return delivered
}
