package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	seen := uuid.New()
	missing := uuid.New()

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", seen).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	processed, err := store.AlreadyProcessed(context.Background(), "email", seen)
	if err != nil || !processed {
		t.Fatalf("expected existing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", missing).WillReturnError(pgx.ErrNoRows)
	processed, err = store.AlreadyProcessed(context.Background(), "email", missing)
	if err != nil || processed {
		t.Fatalf("expected missing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("email", missing).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.MarkProcessed(context.Background(), "email", missing)
	if err != nil || !ok {
		t.Fatalf("expected mark processed success, got %v %v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdempotentSkipsSeenEnvelopes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	calls := 0
	handler := Idempotent(store, "email", HandlerFunc(func(context.Context, Envelope) error {
		calls++
		return nil
	}))

	fresh := Envelope{ID: uuid.New(), Type: TypeAppointmentBooked}
	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", fresh.ID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO processed_events").WithArgs("email", fresh.ID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := handler.Handle(context.Background(), fresh); err != nil {
		t.Fatalf("handle fresh: %v", err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", fresh.ID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	if err := handler.Handle(context.Background(), fresh); err != nil {
		t.Fatalf("handle repeat: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdempotentDoesNotMarkFailedDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	boom := errors.New("smtp down")
	handler := Idempotent(store, "email", HandlerFunc(func(context.Context, Envelope) error { return boom }))

	env := Envelope{ID: uuid.New(), Type: TypeAppointmentCancelled}
	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", env.ID).WillReturnError(pgx.ErrNoRows)
	if err := handler.Handle(context.Background(), env); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
