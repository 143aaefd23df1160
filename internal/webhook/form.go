package webhook

import (
	"net/http"
	"strings"
)

// CallbackForm captures the subset of carrier voice webhook fields the
// handlers use. The carrier posts application/x-www-form-urlencoded.
// Business logic is not made here; this is the provider adapter only.
type CallbackForm struct {
	CallID              string
	AccountID           string
	From                string
	To                  string
	CallStatus          string
	Digits              string
	SpeechResult        string
	AnsweredBy          string
	RecordingURL        string
	DialStatus          string // DialCallStatus of the bridged leg
	DialDuration        string // DialCallDuration, seconds the bridged leg lasted
	Duration            string
	TranscriptionURL    string
	TranscriptionStatus string
}

// ParseCallbackForm parses the request form into a CallbackForm.
func ParseCallbackForm(r *http.Request) (CallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return CallbackForm{}, err
	}
	return CallbackForm{
		CallID:              r.PostFormValue("CallSid"),
		AccountID:           r.PostFormValue("AccountSid"),
		From:                strings.TrimSpace(r.PostFormValue("From")),
		To:                  strings.TrimSpace(r.PostFormValue("To")),
		CallStatus:          r.PostFormValue("CallStatus"),
		Digits:              r.PostFormValue("Digits"),
		SpeechResult:        strings.TrimSpace(r.PostFormValue("SpeechResult")),
		AnsweredBy:          r.PostFormValue("AnsweredBy"),
		RecordingURL:        r.PostFormValue("RecordingUrl"),
		DialStatus:          r.PostFormValue("DialCallStatus"),
		DialDuration:        r.PostFormValue("DialCallDuration"),
		Duration:            r.PostFormValue("CallDuration"),
		TranscriptionURL:    r.PostFormValue("TranscriptionUrl"),
		TranscriptionStatus: r.PostFormValue("TranscriptionStatus"),
	}, nil
}
