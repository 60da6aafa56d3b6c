package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/schedulesource"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/internal/waitlist"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Scheduling groups the engine and waitlist that share one clock and publisher.
type Scheduling struct {
	Engine   *scheduling.Engine
	Waitlist *waitlist.Registry
	Clock    scheduling.Clock
}

// BuildScheduling loads the schedule document and constructs the engine.
// A missing or invalid schedule is returned as an error; cmd/api treats it as fatal.
func BuildScheduling(ctx context.Context, cfg *appconfig.Config, s3Client *s3.Client, publisher events.Publisher, m *metrics.SchedulingMetrics, logger *logging.Logger) (*Scheduling, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	var source schedulesource.S3API
	if s3Client != nil {
		source = s3Client
	}
	store, err := schedulesource.Load(ctx, cfg.ScheduleSource, source)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load schedule from %s: %w", cfg.ScheduleSource, err)
	}

	clock := scheduling.NewSystemClock(cfg.Timezone)
	engine := scheduling.NewEngine(store, logger,
		scheduling.WithClock(clock),
		scheduling.WithMaxSlots(cfg.MaxSlots),
		scheduling.WithBufferMinutes(cfg.BufferMinutes),
		scheduling.WithPublisher(publisher),
		scheduling.WithMetrics(m),
	)
	registry := waitlist.NewRegistry(logger,
		waitlist.WithClock(clock),
		waitlist.WithPublisher(publisher),
		waitlist.WithMetrics(m),
	)
	logger.Info("schedule loaded", "source", cfg.ScheduleSource, "doctors", len(store.Doctors()), "timezone", cfg.Timezone)
	return &Scheduling{Engine: engine, Waitlist: registry, Clock: clock}, nil
}
