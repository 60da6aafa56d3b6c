package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduler/internal/api/router"
	"github.com/wolfman30/clinic-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-scheduler/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/webchat"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const limiterEvictInterval = time.Minute

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic scheduling API",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Timezone,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.close(shutdownCtx)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// application is everything main needs to serve and later tear down.
type application struct {
	handler    http.Handler
	supervisor *bootstrap.Supervisor
	llm        *bootstrap.LLM
	redis      *redis.Client
	pool       *pgxpool.Pool
	logger     *logging.Logger
}

func (a *application) close(ctx context.Context) {
	if err := a.supervisor.Stop(ctx); err != nil {
		a.logger.Warn("background tasks did not stop in time", "error", err)
	}
	if err := a.llm.Close(); err != nil {
		a.logger.Warn("failed to close LLM client", "error", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

type awsClients struct {
	s3      *s3.Client
	ses     *sesv2.Client
	sqs     *sqs.Client
	bedrock *bedrockruntime.Client
	dynamo  *dynamodb.Client
}

// setupAWS builds SDK clients only when a configured feature needs them,
// so a local run never resolves AWS credentials.
func setupAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*awsClients, error) {
	if !cfg.UsesAWS() {
		return &awsClients{}, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	logger.Info("AWS clients configured", "region", cfg.AWSRegion, "endpoint_override", cfg.AWSEndpointOverride != "")
	return &awsClients{
		s3:      s3.NewFromConfig(awsCfg, mainconfig.S3Options(cfg)),
		ses:     sesv2.NewFromConfig(awsCfg),
		sqs:     sqs.NewFromConfig(awsCfg),
		bedrock: bedrockruntime.NewFromConfig(awsCfg),
		dynamo:  dynamodb.NewFromConfig(awsCfg),
	}, nil
}

type appMetrics struct {
	handler      http.Handler
	gatherer     prometheus.Gatherer
	scheduling   *metrics.SchedulingMetrics
	conversation *metrics.ConversationMetrics
}

func setupMetrics() *appMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &appMetrics{
		handler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		gatherer:     reg,
		scheduling:   metrics.NewSchedulingMetrics(reg),
		conversation: metrics.NewConversationMetrics(reg),
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	clients, err := setupAWS(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	m := setupMetrics()
	app := &application{logger: logger, supervisor: bootstrap.NewSupervisor(ctx, logger)}

	app.pool = bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	email, provider := bootstrap.BuildEmailSender(cfg, clients.ses, logger)
	pipeline := bootstrap.BuildEventPipeline(cfg, app.pool, email, clients.sqs, logger)
	logger.Info("booking events configured", "mode", pipeline.Mode, "email", provider)

	sched, err := bootstrap.BuildScheduling(ctx, cfg, clients.s3, pipeline.Publisher, m.scheduling, logger)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	app.llm, err = bootstrap.BuildLLM(ctx, cfg, clients.bedrock, m.conversation, logger)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	kb, err := bootstrap.BuildKnowledgeBase(ctx, cfg, clients.bedrock, logger)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	if cfg.HistoryBackend == "redis" {
		app.redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	}
	history := bootstrap.BuildHistoryStore(cfg, app.redis, clients.dynamo, logger)

	agent := conversation.NewAgent(sched.Engine, logger,
		conversation.WithLLM(app.llm.Client, app.llm.Model),
		conversation.WithKnowledgeBase(kb),
		conversation.WithWaitlist(sched.Waitlist),
		conversation.WithNLU(conversation.NewRuleBasedNLU(sched.Clock)),
		conversation.WithHistoryStore(history),
		conversation.WithConversationMetrics(m.conversation),
	)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.supervisor.Go("rate-limit-evictor", func(ctx context.Context) {
		limiter.Run(limiterEvictInterval, ctx.Done())
	})
	app.supervisor.Go("event-delivery", pipeline.Run)

	app.handler = router.New(&router.Config{
		Logger: logger,
		Calendly: handlers.NewCalendlyHandler(handlers.CalendlyConfig{
			Engine:   sched.Engine,
			Waitlist: sched.Waitlist,
			Logger:   logger,
		}),
		Chat:               conversation.NewHandler(agent, logger),
		WebChat:            webchat.NewHandler(agent, history, logger),
		Stats:              handlers.NewStatsHandler(sched.Engine, sched.Waitlist, m.gatherer),
		MetricsHandler:     m.handler,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return app, nil
}
