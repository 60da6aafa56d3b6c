package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunTemplatedConversation(t *testing.T) {
	cfg := &appconfig.Config{
		Timezone: "UTC",
		MaxSlots: 5,
		ScheduleSource: writeTestFile(t, "schedule.json", `{"doctors":[{"name":"Dr. Sarah Johnson","available_slots":[
  {"date":"2099-01-05","time_slots":[{"start":"09:00","end":"09:30","available":true}]}]}]}`),
		FAQDataPath: writeTestFile(t, "clinic.json", `{"clinic_name":"Riverside Clinic","hours":{"monday":"9-5"},
  "faqs":[{"question":"What are your hours?","answer":"Monday to Friday, 9 to 5."}]}`),
	}

	var out bytes.Buffer
	err := run(context.Background(), cfg, []string{"What are your hours?", "Do you take insurance?"}, &out, logging.Discard())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "templates only") {
		t.Fatalf("expected templated mode banner, got:\n%s", got)
	}
	if !strings.Contains(got, "[2] patient: Do you take insurance?") {
		t.Fatalf("expected both turns in output, got:\n%s", got)
	}
	if !strings.Contains(got, "2 turns, 0 active appointments") {
		t.Fatalf("expected summary line, got:\n%s", got)
	}
}

func TestRunMissingSchedule(t *testing.T) {
	cfg := &appconfig.Config{ScheduleSource: filepath.Join(t.TempDir(), "none.json")}
	if err := run(context.Background(), cfg, defaultScript, &bytes.Buffer{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for missing schedule")
	}
}
