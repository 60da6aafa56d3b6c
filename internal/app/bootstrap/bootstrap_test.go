package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBuildLLMRequiresConfig(t *testing.T) {
	if _, err := BuildLLM(context.Background(), nil, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildLLMWithoutProviders(t *testing.T) {
	llm, err := BuildLLM(context.Background(), &appconfig.Config{}, nil, nil, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, llm.Client)
	assert.NoError(t, llm.Close())
}

func TestBuildLLMBedrockOnly(t *testing.T) {
	cfg := &appconfig.Config{BedrockModelID: "anthropic.claude-3-haiku"}
	bedrock := bedrockruntime.New(bedrockruntime.Options{Region: "us-east-1"})

	llm, err := BuildLLM(context.Background(), cfg, bedrock, nil, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, llm.Client)
	assert.Equal(t, "anthropic.claude-3-haiku", llm.Model)
	assert.IsType(t, &conversation.InstrumentedLLMClient{}, llm.Client)
	assert.NoError(t, llm.Close())
}

func TestBuildKnowledgeBase(t *testing.T) {
	path := writeFile(t, "clinic.json", `{"clinic_name":"Test Clinic","faqs":[{"question":"Do you take insurance?","answer":"Yes."}]}`)

	kb, err := BuildKnowledgeBase(context.Background(), &appconfig.Config{FAQDataPath: path}, nil, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "Test Clinic", kb.Info().ClinicName)

	_, err = BuildKnowledgeBase(context.Background(), &appconfig.Config{FAQDataPath: filepath.Join(t.TempDir(), "missing.json")}, nil, logging.Discard())
	assert.Error(t, err)
}

func TestBuildHistoryStore(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, redisClient)
	t.Cleanup(func() { _ = redisClient.Close() })
	dynamo := dynamodb.New(dynamodb.Options{Region: "us-east-1"})

	tests := []struct {
		name    string
		backend string
		redis   bool
		dynamo  bool
		want    any
	}{
		{name: "redis", backend: "redis", redis: true, want: &conversation.RedisHistoryStore{}},
		{name: "dynamodb", backend: "dynamodb", dynamo: true, want: &conversation.DynamoHistoryStore{}},
		{name: "redis unavailable", backend: "redis"},
		{name: "dynamodb unavailable", backend: "dynamodb"},
		{name: "none", backend: "none", redis: true},
		{name: "unknown", backend: "memcached", redis: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &appconfig.Config{HistoryBackend: tt.backend, HistoryTable: "history", HistoryTTL: time.Hour}
			var rc = redisClient
			if !tt.redis {
				rc = nil
			}
			var dc = dynamo
			if !tt.dynamo {
				dc = nil
			}
			store := BuildHistoryStore(cfg, rc, dc, logging.Discard())
			if tt.want == nil {
				assert.Nil(t, store)
				return
			}
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "127.0.0.1:1"}, logging.Discard(), true))

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "127.0.0.1:1", RedisTLS: true}, logging.Discard(), false)
	require.NotNil(t, client)
	assert.NotNil(t, client.Options().TLSConfig)
	_ = client.Close()
}

func TestBuildPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	if pool := BuildPostgresPool(context.Background(), "", logging.Discard()); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildEmailSender(t *testing.T) {
	sender, provider := BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, nil, logging.Discard())
	assert.Equal(t, "stub", provider)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, provider = BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.test", SendGridFromEmail: "clinic@example.com"}, nil, logging.Discard())
	assert.Equal(t, "sendgrid", provider)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	_, provider = BuildEmailSender(&appconfig.Config{EmailProvider: "ses"}, nil, logging.Discard())
	assert.Equal(t, "stub", provider)

	_, provider = BuildEmailSender(nil, nil, logging.Discard())
	assert.Equal(t, "stub", provider)
}

func TestBuildEventPipelineInline(t *testing.T) {
	stub := notify.NewStubEmailSender(logging.Discard())
	p := BuildEventPipeline(&appconfig.Config{}, nil, stub, nil, logging.Discard())
	require.Equal(t, "inline", p.Mode)
	assert.Nil(t, p.Deliverer)
	assert.IsType(t, &events.InlinePublisher{}, p.Publisher)

	err := p.Publisher.Publish(context.Background(), events.TypeAppointmentBooked, events.AppointmentEvent{
		AppointmentID: "apt-1",
		PatientEmail:  "pat@example.com",
		Date:          "2025-03-10",
		StartTime:     "09:00",
	})
	assert.NoError(t, err)

	// Run returns immediately without an outbox.
	p.Run(context.Background())
}

func TestBuildEventPipelineWithoutHandlers(t *testing.T) {
	p := BuildEventPipeline(&appconfig.Config{}, nil, nil, nil, logging.Discard())
	assert.Equal(t, "none", p.Mode)
	assert.IsType(t, events.NopPublisher{}, p.Publisher)

	p = BuildEventPipeline(nil, nil, nil, nil, logging.Discard())
	assert.Equal(t, "none", p.Mode)
}

func TestBuildEventPipelineOutbox(t *testing.T) {
	// pgxpool connects lazily, so no database is needed to build the pipeline.
	pool, err := pgxpool.New(context.Background(), "postgres://clinic@127.0.0.1:1/clinic")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	p := BuildEventPipeline(&appconfig.Config{OutboxPollInterval: time.Second}, pool, notify.NewStubEmailSender(logging.Discard()), nil, logging.Discard())
	assert.Equal(t, "outbox", p.Mode)
	assert.NotNil(t, p.Deliverer)
	assert.IsType(t, &events.OutboxStore{}, p.Publisher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
}

const bootstrapSchedule = `{"doctors":[{"name":"Dr. Sarah Johnson","available_slots":[
  {"date":"2099-01-05","time_slots":[{"start":"09:00","end":"09:30","available":true}]}]}]}`

func TestBuildScheduling(t *testing.T) {
	cfg := &appconfig.Config{
		ScheduleSource: writeFile(t, "schedule.json", bootstrapSchedule),
		Timezone:       "Asia/Kolkata",
		MaxSlots:       3,
		BufferMinutes:  10,
	}
	sched, err := BuildScheduling(context.Background(), cfg, nil, nil, nil, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 3, sched.Engine.MaxSlots())
	assert.Equal(t, 10, sched.Engine.BufferMinutes())
	assert.Equal(t, []string{"Dr. Sarah Johnson"}, sched.Engine.Doctors())

	slots := sched.Engine.Availability(context.Background(), scheduling.AvailabilityQuery{Date: "2099-01-05"})
	require.Len(t, slots, 1)

	entry := sched.Waitlist.Add(context.Background(), waitlistRequest())
	assert.NotEmpty(t, entry.ID)
}

func TestBuildSchedulingFailures(t *testing.T) {
	_, err := BuildScheduling(context.Background(), nil, nil, nil, nil, logging.Discard())
	assert.Error(t, err)

	cfg := &appconfig.Config{ScheduleSource: writeFile(t, "broken.json", `{"doctors":[{"name":""}]}`)}
	_, err = BuildScheduling(context.Background(), cfg, nil, nil, nil, logging.Discard())
	assert.ErrorIs(t, err, scheduling.ErrInvalidSchedule)

	cfg = &appconfig.Config{ScheduleSource: "s3://bucket/schedule.json"}
	_, err = BuildScheduling(context.Background(), cfg, nil, nil, nil, logging.Discard())
	assert.Error(t, err)
}
