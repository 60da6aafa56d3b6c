package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	dashDatePattern  = regexp.MustCompile(`\b(\d{2})-(\d{2})-(\d{4})\b`)
	todayPattern     = regexp.MustCompile(`(?i)\btoday\b`)
	tomorrowPattern  = regexp.MustCompile(`(?i)\btomorrow\b`)

	meridiemPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`)
	clockPattern    = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

	doctorPattern = regexp.MustCompile(`(?:\b[Dd][Rr]\.?|\b[Dd]octor)\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?91[-.\s]?\d{10}\b`),
		regexp.MustCompile(`\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\b\d{10}\b`),
	}

	introducedNamePattern = regexp.MustCompile(`(?i:\bmy name is|\bi'm|\bi am|\bname is|\bcall me|\bthis is)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	labelledNamePattern   = regexp.MustCompile(`(?i:\bname)\s*:\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	bareNamePattern       = regexp.MustCompile(`^([A-Z][a-z]+\s+[A-Z][a-z]+)$`)
)

// Capitalised words that start sentences or name things other than patients.
var notNames = map[string]bool{
	"dr": true, "doctor": true, "yes": true, "no": true, "hi": true, "hello": true,
	"thanks": true, "thank": true, "please": true, "sounds": true, "book": true,
	"general": true, "physical": true, "follow": true, "specialist": true, "next": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "january": true, "february": true, "march": true,
	"april": true, "may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

var typeChangeMarkers = []string{"actually", "make it", "change to", "switch to", "instead"}

type typeRule struct {
	keywords []string
	typ      scheduling.AppointmentType
}

// Checked in order; the first rule with a hit wins.
var typeRules = []typeRule{
	{[]string{"follow-up", "followup", "follow up"}, scheduling.FollowUp},
	{[]string{"physical", "exam"}, scheduling.PhysicalExam},
	{[]string{"specialist"}, scheduling.SpecialistConsultation},
	{[]string{"consultation", "checkup", "check-up", "general", "routine", "appointment"}, scheduling.GeneralConsultation},
}

var reasonRules = []struct {
	keyword string
	reason  string
}{
	{"headache", "headache"},
	{"pain", "pain"},
	{"checkup", "routine checkup"},
	{"exam", "physical examination"},
	{"symptoms", "symptoms"},
	{"follow-up", "follow-up visit"},
	{"routine", "routine checkup"},
}

// ExtractBookingFields looks at the current message first and then earlier
// user turns, newest first, so a corrected detail replaces an older one.
func (n *RuleBasedNLU) ExtractBookingFields(text string, history []ChatMessage) BookingFields {
	sources := append([]string{text}, userTurns(history)...)

	var fields BookingFields
	fields.Date = firstFrom(sources, n.extractDate)
	fields.Time = firstFrom(sources, extractTime)
	fields.DoctorName = firstFrom(sources, extractDoctor)
	fields.PatientEmail = firstFrom(sources, func(s string) string { return emailPattern.FindString(s) })
	fields.PatientPhone = firstFrom(sources, extractPhone)
	fields.PatientName = firstFrom(sources, extractName)

	// Chronological user context, oldest first.
	chronological := make([]string, len(sources))
	for i, s := range sources[1:] {
		chronological[len(sources)-2-i] = s
	}
	chronological[len(sources)-1] = text
	// Email domains would otherwise trip keywords like "exam".
	context := strings.ToLower(emailPattern.ReplaceAllString(strings.Join(chronological, " "), " "))

	fields.Type, fields.TypeChanged = extractType(context)
	for _, rule := range reasonRules {
		if strings.Contains(context, rule.keyword) {
			fields.Reason = rule.reason
			break
		}
	}
	return fields
}

func firstFrom(sources []string, extract func(string) string) string {
	for _, s := range sources {
		if v := extract(s); v != "" {
			return v
		}
	}
	return ""
}

func (n *RuleBasedNLU) extractDate(s string) string {
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		if d, ok := normaliseDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	for _, p := range []*regexp.Regexp{slashDatePattern, dashDatePattern} {
		if m := p.FindStringSubmatch(s); m != nil {
			if d, ok := normaliseDate(m[3], m[1], m[2]); ok {
				return d
			}
		}
	}
	now := n.clock.Now()
	switch {
	case tomorrowPattern.MatchString(s):
		return now.AddDate(0, 0, 1).Format(scheduling.DateLayout)
	case todayPattern.MatchString(s):
		return now.Format(scheduling.DateLayout)
	}
	return ""
}

func normaliseDate(year, month, day string) (string, bool) {
	raw := year + "-" + month + "-" + day
	if _, err := time.Parse(scheduling.DateLayout, raw); err != nil {
		return "", false
	}
	return raw, true
}

func extractTime(s string) string {
	if m := meridiemPattern.FindStringSubmatch(s); m != nil {
		if t, ok := normaliseMeridiem(m[1], m[2], m[3]); ok {
			return t
		}
	}
	if m := clockPattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", hour, m[2])
	}
	return ""
}

// normaliseMeridiem turns ("2", "30", "pm") into "14:30" and 12am into 00:00.
func normaliseMeridiem(hourText, minuteText, meridiem string) (string, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 1 || hour > 12 {
		return "", false
	}
	if minuteText == "" {
		minuteText = "00"
	}
	switch strings.ToLower(meridiem) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return fmt.Sprintf("%02d:%s", hour, minuteText), true
}

func extractDoctor(s string) string {
	m := doctorPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return "Dr. " + m[1]
}

func extractPhone(s string) string {
	// Dates and clock times look like digit runs too.
	cleaned := isoDatePattern.ReplaceAllString(s, " ")
	cleaned = slashDatePattern.ReplaceAllString(cleaned, " ")
	cleaned = dashDatePattern.ReplaceAllString(cleaned, " ")
	for _, p := range phonePatterns {
		if m := p.FindString(cleaned); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func extractName(s string) string {
	for _, p := range []*regexp.Regexp{introducedNamePattern, labelledNamePattern} {
		if m := p.FindStringSubmatch(s); m != nil && plausibleName(m[1]) {
			return m[1]
		}
	}
	for _, segment := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		segment = strings.TrimSpace(segment)
		if bareNamePattern.MatchString(segment) && plausibleName(segment) {
			return segment
		}
	}
	return ""
}

func plausibleName(name string) bool {
	for _, word := range strings.Fields(name) {
		if notNames[strings.ToLower(word)] {
			return false
		}
	}
	return true
}

// extractType prefers the type named after the last change marker.
func extractType(context string) (scheduling.AppointmentType, bool) {
	changeAt := -1
	for _, marker := range typeChangeMarkers {
		if i := strings.LastIndex(context, marker); i > changeAt {
			changeAt = i
		}
	}
	if changeAt >= 0 {
		if t := matchType(context[changeAt:]); t != "" {
			return t, true
		}
	}
	return matchType(context), false
}

func matchType(s string) scheduling.AppointmentType {
	for _, rule := range typeRules {
		if containsAny(s, rule.keywords) {
			return rule.typ
		}
	}
	return ""
}
