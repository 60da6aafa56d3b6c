// Command agentcheck drives the chat agent through a scripted conversation
// against the configured schedule and LLM providers, printing each turn.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var defaultScript = []string{
	"Hi, what are your clinic hours?",
	"I'd like to book a general consultation",
	"My name is Asha Rao, email asha@example.com, phone 98450 12345",
	"Tomorrow morning please",
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for the conversation")
	flag.Parse()

	script := defaultScript
	if flag.NArg() > 0 {
		script = flag.Args()
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, script, os.Stdout, logger); err != nil {
		logger.Error("agent check failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, script []string, out io.Writer, logger *logging.Logger) error {
	var (
		s3Client *s3.Client
		bedrock  *bedrockruntime.Client
	)
	if cfg.UsesAWS() {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		s3Client = s3.NewFromConfig(awsCfg, mainconfig.S3Options(cfg))
		bedrock = bedrockruntime.NewFromConfig(awsCfg)
	}

	// Events are dropped so a check never emails patients.
	sched, err := bootstrap.BuildScheduling(ctx, cfg, s3Client, nil, nil, logger)
	if err != nil {
		return err
	}
	llm, err := bootstrap.BuildLLM(ctx, cfg, bedrock, nil, logger)
	if err != nil {
		return err
	}
	defer llm.Close()
	kb, err := bootstrap.BuildKnowledgeBase(ctx, cfg, bedrock, logger)
	if err != nil {
		return err
	}

	agent := conversation.NewAgent(sched.Engine, logger,
		conversation.WithLLM(llm.Client, llm.Model),
		conversation.WithKnowledgeBase(kb),
		conversation.WithWaitlist(sched.Waitlist),
		conversation.WithNLU(conversation.NewRuleBasedNLU(sched.Clock)),
	)

	model := llm.Model
	if model == "" {
		model = "templates only"
	}
	fmt.Fprintf(out, "Agent check (%s, today %s)\n", model, sched.Engine.Today())
	fmt.Fprintln(out, strings.Repeat("=", 60))

	var history []conversation.ChatMessage
	for i, msg := range script {
		started := time.Now()
		resp, err := agent.ProcessMessage(ctx, conversation.ChatRequest{
			Message:             msg,
			ConversationHistory: history,
		})
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		fmt.Fprintf(out, "\n[%d] patient: %s\n", i+1, msg)
		fmt.Fprintf(out, "    agent (%s, %v): %s\n", resp.Intent, time.Since(started).Round(time.Millisecond), resp.Response)
		if resp.AppointmentID != "" {
			fmt.Fprintf(out, "    booked appointment %s\n", resp.AppointmentID)
		}
		history = append(history,
			conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: msg},
			conversation.ChatMessage{Role: conversation.ChatRoleAssistant, Content: resp.Response},
		)
	}

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintf(out, "%d turns, %d active appointments\n", len(script), len(sched.Engine.ActiveAppointments()))
	return nil
}
