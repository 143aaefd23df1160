// Package postcall handles everything that happens after a call reaches a
// terminal state: redacting caller PII from transcripts and captured
// fields, dispatching the owner notification exactly once, and purging
// recording and transcript references past the retention window.
package postcall

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// phonePattern matches phone-shaped digit runs: 7 or more digits
	// optionally separated by spaces, dots, dashes, or parentheses.
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{5,}\d`)
	digitPattern = regexp.MustCompile(`\d`)
)

// MaskPII masks email addresses and phone numbers in free text. Emails
// keep the first character of the local part and the full domain
// ("jane.doe@example.com" becomes "j***@example.com"); phone numbers keep
// only the last four digits ("555-123-4567" becomes "***-***-4567").
func MaskPII(text string) string {
	text = emailPattern.ReplaceAllStringFunc(text, maskEmail)
	text = phonePattern.ReplaceAllStringFunc(text, maskPhone)
	return text
}

func maskEmail(addr string) string {
	at := strings.Index(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

func maskPhone(num string) string {
	digits := digitPattern.FindAllString(num, -1)
	if len(digits) < 7 {
		return num // too short to be a phone number
	}
	return "***-***-" + strings.Join(digits[len(digits)-4:], "")
}

// MaskFields returns a copy of the captured-field map with every value
// passed through MaskPII.
func MaskFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = MaskPII(v)
	}
	return out
}
