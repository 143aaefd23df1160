// Package ivr renders the consent and destination menus and interprets
// the single-digit input they gather. Menu generation is a pure function
// of (language, retry flag): a redelivered webhook reproduces identical
// markup. An invalid digit is treated the same as a timeout: one
// reprompt at most, then fallback to voicemail.
package ivr

import (
	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/twiml"
)

// Webhook paths the gather verbs post back to. The engine appends the
// retry marker so a second timeout can be distinguished without any
// stored retry counter.
const (
	consentPath       = "/webhooks/voice/consent"
	menuPath          = "/webhooks/voice/menu"
	transcriptionPath = "/webhooks/voice/transcription"
	gatherWait        = 6 // seconds to wait for a digit
)

// ConsentOutcome is the interpretation of a consent gather callback.
type ConsentOutcome int

const (
	// ConsentAccept: digit 1, recording consent granted.
	ConsentAccept ConsentOutcome = iota
	// ConsentDecline: digit 9, terminal opt-out.
	ConsentDecline
	// ConsentRetry: invalid digit or timeout on the first attempt.
	ConsentRetry
	// ConsentFallthrough: invalid digit or timeout after the reprompt;
	// consent status is recorded as timeout and the call goes to
	// voicemail unrecorded.
	ConsentFallthrough
)

// MenuOutcome is the interpretation of a destination menu callback.
type MenuOutcome int

const (
	// MenuFrontDesk: digit 1, bridge to the human line.
	MenuFrontDesk MenuOutcome = iota
	// MenuAssistant: digit 2, AI-assisted intake.
	MenuAssistant
	// MenuRetry: invalid digit or timeout on the first attempt.
	MenuRetry
	// MenuFallthrough: invalid or timeout after the reprompt; voicemail.
	MenuFallthrough
)

// Engine renders IVR documents and interprets gathered digits.
type Engine struct{}

// NewEngine creates an IVR engine.
func NewEngine() *Engine {
	return &Engine{}
}

func say(loc Locale, text string) *twiml.Say {
	return &twiml.Say{Language: voiceLanguage[loc], Text: text}
}

func retrySuffix(retry bool) string {
	if retry {
		return "?retry=1"
	}
	return ""
}

// ConsentPrompt returns the recording-disclosure gather. The retry form
// uses the reprompt wording and marks its action URL so the next timeout
// falls through instead of looping.
func (e *Engine) ConsentPrompt(loc Locale, retry bool) *twiml.Response {
	p := prompts[loc]
	text := p.consentDisclosure
	if retry {
		text = p.consentReprompt
	}
	return twiml.New(
		twiml.Gather{
			Action:    consentPath + retrySuffix(retry),
			Method:    "POST",
			NumDigits: 1,
			Timeout:   gatherWait,
			Say:       say(loc, text),
		},
		// Gather falls through here on timeout; redirect re-enters the
		// consent handler with no Digits value.
		twiml.Redirect{Method: "POST", URL: consentPath + retrySuffix(retry)},
	)
}

// InterpretConsent maps a gathered digit (or its absence) to an outcome.
func (e *Engine) InterpretConsent(digit call.Digit, ok, retried bool) ConsentOutcome {
	if ok {
		switch digit.String() {
		case "1":
			return ConsentAccept
		case "9":
			return ConsentDecline
		}
	}
	if retried {
		return ConsentFallthrough
	}
	return ConsentRetry
}

// MenuPrompt returns the destination-selection gather.
func (e *Engine) MenuPrompt(loc Locale, retry bool) *twiml.Response {
	p := prompts[loc]
	text := p.menuGreeting
	if retry {
		text = p.menuReprompt
	}
	return twiml.New(
		twiml.Gather{
			Action:    menuPath + retrySuffix(retry),
			Method:    "POST",
			NumDigits: 1,
			Timeout:   gatherWait,
			Say:       say(loc, text),
		},
		twiml.Redirect{Method: "POST", URL: menuPath + retrySuffix(retry)},
	)
}

// InterpretMenu maps a gathered digit (or its absence) to an outcome.
func (e *Engine) InterpretMenu(digit call.Digit, ok, retried bool) MenuOutcome {
	if ok {
		switch digit.String() {
		case "1":
			return MenuFrontDesk
		case "2":
			return MenuAssistant
		}
	}
	if retried {
		return MenuFallthrough
	}
	return MenuRetry
}

// OptOut returns the opt-out confirmation followed by hangup.
func (e *Engine) OptOut(loc Locale) *twiml.Response {
	return twiml.New(say(loc, prompts[loc].optOut), twiml.Hangup{})
}

// Voicemail returns the voicemail intro and record verb.
func (e *Engine) Voicemail(loc Locale, actionPath string, maxSeconds int) *twiml.Response {
	return twiml.New(
		say(loc, prompts[loc].voicemailIntro),
		twiml.Record{
			Action:             actionPath,
			MaxLength:          maxSeconds,
			PlayBeep:           true,
			Transcribe:         true,
			TranscribeCallback: transcriptionPath,
		},
		twiml.Hangup{},
	)
}

// VoicemailThanks closes out a recorded message.
func (e *Engine) VoicemailThanks(loc Locale) *twiml.Response {
	return twiml.New(say(loc, prompts[loc].voicemailThanks), twiml.Hangup{})
}

// Bridging returns the hold prompt spoken before a bridge dial.
func (e *Engine) Bridging(loc Locale) *twiml.Say {
	return say(loc, prompts[loc].bridging)
}

// Apology returns the graceful failure document in the caller's locale.
func (e *Engine) Apology(loc Locale) *twiml.Response {
	return twiml.New(say(loc, prompts[loc].apology), twiml.Hangup{})
}
