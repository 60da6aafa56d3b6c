// Package main runs E2E scenarios against a running scheduling API.
//
// Scenarios cover:
//   - Availability lookup with doctor and type filters
//   - Book, reschedule and cancel through the REST surface
//   - Double booking and email verification failures
//   - Waitlist sign-up
//   - FAQ and booking turns through /api/chat
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go [scenario-name]
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go book-flow    # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const testEmail = "e2e.patient@example.com"

var (
	apiBase string
	client  = &http.Client{Timeout: 60 * time.Second}
)

// ---------------------------------------------------------------------------
// Scenario definition
// ---------------------------------------------------------------------------

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func call(method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, apiBase+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w (body %s)", path, err, string(raw))
		}
	}
	return resp.StatusCode, nil
}

type slot struct {
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	DoctorName string `json:"doctor_name"`
}

// firstOpenSlots scans forward from today for a date with at least n slots.
func firstOpenSlots(apptType string, n int) (string, []slot) {
	for d := 0; d < 21; d++ {
		date := time.Now().AddDate(0, 0, d).Format("2006-01-02")
		var resp struct {
			Slots []slot `json:"slots"`
		}
		path := fmt.Sprintf("/api/calendly/availability?date=%s&appointment_type=%s", date, apptType)
		if status, err := call(http.MethodGet, path, nil, &resp); err != nil || status != http.StatusOK {
			continue
		}
		if len(resp.Slots) >= n {
			return date, resp.Slots
		}
	}
	return "", nil
}

type bookResult struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointment_id"`
	Message       string `json:"message"`
}

func book(s slot, apptType string) (int, bookResult, error) {
	var out bookResult
	status, err := call(http.MethodPost, "/api/calendly/book", map[string]string{
		"patient_name":     "E2E Patient",
		"patient_email":    testEmail,
		"patient_phone":    "+91 98450 00000",
		"date":             s.Date,
		"start_time":       s.StartTime,
		"doctor_name":      s.DoctorName,
		"appointment_type": apptType,
		"reason":           "e2e scenario",
	}, &out)
	return status, out, err
}

func cancel(id, email string) (int, error) {
	return call(http.MethodPost, "/api/calendly/cancel", map[string]string{
		"appointment_id": id,
		"patient_email":  email,
	}, nil)
}

type chatReply struct {
	Response       string `json:"response"`
	Intent         string `json:"intent"`
	ConversationID string `json:"conversation_id"`
}

func chat(message, conversationID string) (chatReply, error) {
	var out chatReply
	status, err := call(http.MethodPost, "/api/chat", map[string]string{
		"message":         message,
		"conversation_id": conversationID,
	}, &out)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("chat returned %d", status)
	}
	return out, err
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioHealth(t *T) {
	var body map[string]string
	status, err := call(http.MethodGet, "/health", nil, &body)
	if err != nil {
		t.fatalf("health: %v", err)
		return
	}
	t.check("health returns 200", status == http.StatusOK)
	t.check("status is healthy", body["status"] == "healthy")
}

func scenarioAvailability(t *T) {
	date, slots := firstOpenSlots("follow_up", 1)
	if date == "" {
		t.fatalf("no availability in the next three weeks")
		return
	}
	t.check("slots found for "+date, len(slots) > 0)
	status, _ := call(http.MethodGet, "/api/calendly/availability", nil, nil)
	t.check("missing date is rejected", status == http.StatusBadRequest)
}

func scenarioBookFlow(t *T) {
	_, slots := firstOpenSlots("general_consultation", 2)
	if len(slots) < 2 {
		t.fatalf("need two open slots")
		return
	}
	status, booked, err := book(slots[0], "general_consultation")
	if err != nil {
		t.fatalf("book: %v", err)
		return
	}
	t.check("booking succeeds", status == http.StatusOK && booked.Success)
	t.check("appointment id returned", booked.AppointmentID != "")

	status, _, _ = book(slots[0], "general_consultation")
	t.check("double booking is rejected with 409", status == http.StatusConflict)

	status, err = call(http.MethodPost, "/api/calendly/reschedule", map[string]string{
		"appointment_id": booked.AppointmentID,
		"new_date":       slots[1].Date,
		"new_start_time": slots[1].StartTime,
	}, nil)
	t.check("reschedule succeeds", err == nil && status == http.StatusOK)

	status, _ = cancel(booked.AppointmentID, "someone.else@example.com")
	t.check("cancel with wrong email is forbidden", status == http.StatusForbidden)

	status, _ = cancel(booked.AppointmentID, testEmail)
	t.check("cancel succeeds", status == http.StatusOK)

	status, _ = cancel(booked.AppointmentID, testEmail)
	t.check("second cancel is not found", status == http.StatusNotFound)
}

func scenarioWaitlist(t *T) {
	var out struct {
		Success    bool   `json:"success"`
		WaitlistID string `json:"waitlist_id"`
	}
	status, err := call(http.MethodPost, "/api/calendly/waitlist", map[string]string{
		"patient_name":     "E2E Patient",
		"patient_email":    testEmail,
		"patient_phone":    "+91 98450 00000",
		"preferred_date":   time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		"appointment_type": "physical_exam",
	}, &out)
	if err != nil {
		t.fatalf("waitlist: %v", err)
		return
	}
	t.check("waitlist join succeeds", status == http.StatusOK && out.Success)
	t.check("waitlist id returned", out.WaitlistID != "")
}

func scenarioChatFAQ(t *T) {
	reply, err := chat("What are your clinic hours?", "")
	if err != nil {
		t.fatalf("chat: %v", err)
		return
	}
	t.check("faq intent detected", reply.Intent == "faq")
	t.check("reply is not empty", strings.TrimSpace(reply.Response) != "")
}

func scenarioChatBooking(t *T) {
	convID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	reply, err := chat("I need to book a follow-up visit", convID)
	if err != nil {
		t.fatalf("chat: %v", err)
		return
	}
	t.check("scheduling intent detected", reply.Intent == "scheduling")
	reply, err = chat("My name is E2E Patient, email "+testEmail+", phone 98450 00000", convID)
	t.check("details turn answered", err == nil && reply.Response != "")
}

var scenarios = []scenario{
	{"health", scenarioHealth},
	{"availability", scenarioAvailability},
	{"book-flow", scenarioBookFlow},
	{"waitlist", scenarioWaitlist},
	{"chat-faq", scenarioChatFAQ},
	{"chat-booking", scenarioChatBooking},
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	for _, sc := range scenarios {
		if filter != "" && sc.Name != filter {
			continue
		}
		fmt.Printf("\n=== %s ===\n", sc.Name)
		t := &T{name: sc.Name}
		sc.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\n%d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
