package bootstrap

import (
	"context"
	"sync"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Supervisor runs the API's background loops (outbox delivery, rate limiter
// eviction) under one context and waits for them on shutdown.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logging.Logger
}

func NewSupervisor(parent context.Context, logger *logging.Logger) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, logger: logger}
}

// Go starts fn in its own goroutine. A panic in fn is logged and does not
// take down the process.
func (s *Supervisor) Go(name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		s.logger.Debug("background task started", "task", name)
		fn(s.ctx)
		s.logger.Debug("background task stopped", "task", name)
	}()
}

// Done is closed once Stop is called or the parent context ends.
func (s *Supervisor) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Stop cancels every task and waits until they return or ctx expires.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
