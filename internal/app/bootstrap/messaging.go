package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const notifierConsumer = "confirmation-notifier"

// BuildEmailSender picks the sender named by EMAIL_PROVIDER. Missing
// credentials fall back to the stub sender, which only logs.
func BuildEmailSender(cfg *appconfig.Config, ses *sesv2.Client, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub"
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, "sendgrid"
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub email sender")
	case "ses":
		if sender := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, "ses"
		}
		logger.Warn("ses selected but no SES client is configured; using stub email sender")
	}
	return notify.NewStubEmailSender(logger), "stub"
}

// EventPipeline is how the engine's booking events leave the process.
type EventPipeline struct {
	Publisher events.Publisher
	// Deliverer is nil for inline delivery.
	Deliverer *events.Deliverer
	Mode      string
}

// BuildEventPipeline fans events out to the confirmation notifier and, when
// EVENTS_QUEUE_URL is set, to SQS. With a Postgres pool events go through the
// outbox and the notifier is made idempotent; otherwise they are delivered inline.
func BuildEventPipeline(cfg *appconfig.Config, pool *pgxpool.Pool, email notify.EmailSender, sqsClient *sqs.Client, logger *logging.Logger) *EventPipeline {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return &EventPipeline{Publisher: events.NopPublisher{}, Mode: "none"}
	}

	var notifier events.DeliveryHandler
	if email != nil {
		notifier = notify.NewConfirmationNotifier(email, notify.NotifierConfig{
			ClinicName: cfg.ClinicName,
			StaffEmail: cfg.StaffEmail,
		}, logger)
	}

	var queue events.DeliveryHandler
	if url := strings.TrimSpace(cfg.EventsQueueURL); url != "" && sqsClient != nil {
		queue = events.NewSQSHandler(sqsClient, url)
	}

	if pool != nil {
		if notifier != nil {
			notifier = events.Idempotent(events.NewProcessedStore(pool), notifierConsumer, notifier)
		}
		handler := joinHandlers(notifier, queue)
		if handler == nil {
			return &EventPipeline{Publisher: events.NopPublisher{}, Mode: "none"}
		}
		store := events.NewOutboxStore(pool)
		deliverer := events.NewDeliverer(store, handler, events.DeliveryOptions{
			Interval:    cfg.OutboxPollInterval,
			MaxAttempts: cfg.OutboxMaxAttempts,
		}, logger)
		logger.Info("booking events use the postgres outbox", "sqs", queue != nil)
		return &EventPipeline{Publisher: store, Deliverer: deliverer, Mode: "outbox"}
	}

	handler := joinHandlers(notifier, queue)
	if handler == nil {
		return &EventPipeline{Publisher: events.NopPublisher{}, Mode: "none"}
	}
	logger.Info("booking events are delivered inline", "sqs", queue != nil)
	return &EventPipeline{Publisher: events.NewInlinePublisher(handler), Mode: "inline"}
}

// Run blocks delivering outbox entries until ctx is done. Inline pipelines return at once.
func (p *EventPipeline) Run(ctx context.Context) {
	if p == nil || p.Deliverer == nil {
		return
	}
	p.Deliverer.Start(ctx)
}

func joinHandlers(handlers ...events.DeliveryHandler) events.DeliveryHandler {
	var out events.MultiHandler
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
