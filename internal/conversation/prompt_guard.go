package conversation

import (
	"regexp"
	"strings"
)

// GuardResult is the outcome of screening a chat message before it reaches the LLM.
type GuardResult struct {
	// Blocked messages are answered from templates only.
	Blocked bool
	Score   float64
	Reasons []string
}

type guardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

const (
	guardBlockThreshold = 0.7
	guardWarnThreshold  = 0.3
)

var guardPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?)`), "injection:override_instructions", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "injection:new_instructions", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|god\s*mode`), "injection:jailbreak", 0.9},
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|tell\s+me)\s+(your\s+)?(system\s+prompt|instructions|hidden\s+prompt)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(list|show|give|tell)\s+(me\s+)?(all\s+)?(the\s+)?(other\s+)?patients?('?s)?\s+(data|names?|emails?|phones?|records?|appointments?)`), "exfiltration:patient_data", 0.7},
	{regexp.MustCompile(`(?i)\b(api|secret|aws|database|db)\s*(key|token|secret|password|credential)s?\b`), "exfiltration:credentials", 0.8},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed|svg)\b`), "obfuscation:html", 0.6},
	{regexp.MustCompile(`(?i)\[/?INST\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>`), "context:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|assistant)\s*:`), "context:role_markers", 0.5},
}

var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[/?INST\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>`),
	regexp.MustCompile(`(?i)###\s*(system|instruction|assistant)\s*:`),
	regexp.MustCompile(`<\s*(script|iframe|object|embed|svg)\b[^>]*>`),
}

// ScreenMessage scores message for prompt-injection signals. The score is the
// strongest signal plus 0.1 for each additional one, capped at 1.
func ScreenMessage(message string) GuardResult {
	var result GuardResult
	if strings.TrimSpace(message) == "" {
		return result
	}
	for _, p := range guardPatterns {
		if !p.re.MatchString(message) {
			continue
		}
		result.Reasons = append(result.Reasons, p.reason)
		if p.weight > result.Score {
			result.Score = p.weight
		}
	}
	if n := len(result.Reasons); n > 1 {
		result.Score += float64(n-1) * 0.1
		if result.Score > 1 {
			result.Score = 1
		}
	}
	result.Blocked = result.Score >= guardBlockThreshold
	return result
}

// SanitizeForLLM strips role markers and markup while keeping the rest of the text.
func SanitizeForLLM(message string) string {
	for _, re := range sanitizePatterns {
		message = re.ReplaceAllString(message, "")
	}
	return strings.TrimSpace(message)
}

const blockedReply = "I'm here to help you with appointment scheduling and questions about our clinic. How can I assist you today?"
