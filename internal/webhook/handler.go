package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/database/models"
	"github.com/callgreet/callgreet/internal/intake"
	"github.com/callgreet/callgreet/internal/ivr"
	"github.com/callgreet/callgreet/internal/routing"
	"github.com/callgreet/callgreet/internal/twiml"
)

// Webhook paths as the carrier sees them. Gather and dial actions post
// back to these absolute paths.
const (
	IncomingPath   = "/webhooks/voice/incoming"
	DialStatusPath = "/webhooks/voice/dial-status"
	ConsentPath    = "/webhooks/voice/consent"
	MenuPath       = "/webhooks/voice/menu"
	IntakePath     = "/webhooks/voice/intake"
	StatusPath     = "/webhooks/voice/status"
	RecordingPath  = "/webhooks/voice/recording"
	VoicemailPath  = "/webhooks/voice/voicemail"

	// TranscriptionPath receives the carrier's async transcription
	// callback for recorded voicemail.
	TranscriptionPath = "/webhooks/voice/transcription"
)

const voicemailMaxSeconds = 120

// Processor runs the post-call pipeline once a call reaches a terminal
// state.
type Processor interface {
	Process(ctx context.Context, callID string) error
}

// Handler serves the carrier voice webhooks. Every response is a voice
// markup document; internal failures render the apology document rather
// than an HTTP error, because an error status leaves the caller with
// dead air. Only signature and E.164 validation failures reject the
// request outright, before any persistence is touched.
type Handler struct {
	verifier   *Verifier
	publicBase string // scheme+host the carrier signs against
	sessions   database.CallSessionRepository
	consents   database.ConsentRepository
	sysConfig  database.SystemConfigRepository
	ivr        *ivr.Engine
	intake     *intake.Engine
	processor  Processor
	logger     *slog.Logger
}

// NewHandler creates the voice webhook handler.
func NewHandler(verifier *Verifier, publicBase string, sessions database.CallSessionRepository, consents database.ConsentRepository, sysConfig database.SystemConfigRepository, ivrEngine *ivr.Engine, intakeEngine *intake.Engine, processor Processor, logger *slog.Logger) *Handler {
	return &Handler{
		verifier:   verifier,
		publicBase: strings.TrimRight(publicBase, "/"),
		sessions:   sessions,
		consents:   consents,
		sysConfig:  sysConfig,
		ivr:        ivrEngine,
		intake:     intakeEngine,
		processor:  processor,
		logger:     logger.With("component", "webhook"),
	}
}

// Routes returns the voice webhook router, mounted at /webhooks/voice.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireSignature)
	r.Post("/incoming", h.handleIncoming)
	r.Post("/dial-status", h.handleDialStatus)
	r.Post("/consent", h.handleConsent)
	r.Post("/menu", h.handleMenu)
	r.Post("/intake", h.handleIntake)
	r.Post("/status", h.handleStatus)
	r.Post("/recording", h.handleRecording)
	r.Post("/voicemail", h.handleVoicemail)
	r.Post("/transcription", h.handleTranscription)
	return r
}

// requireSignature validates the carrier signature before any handler
// runs. Missing or mismatched signatures are rejected with 403 and no
// state is touched.
func (h *Handler) requireSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}
		url := h.publicBase + r.URL.RequestURI()
		if err := h.verifier.Verify(url, r.PostForm, r.Header.Get(SignatureHeader)); err != nil {
			h.logger.Warn("webhook signature rejected",
				"path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
			http.Error(w, "signature verification failed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// locale resolves the prompt language for a session.
func (h *Handler) locale(sess *models.CallSession) ivr.Locale {
	if sess == nil {
		return ivr.LocaleEN
	}
	return ivr.ParseLocale(sess.Language)
}

// apology renders the graceful failure document. Used on every internal
// error path so the caller hears a close-out instead of silence.
func (h *Handler) apology(w http.ResponseWriter, loc ivr.Locale) {
	h.ivr.Apology(loc).Write(w)
}

// handleIncoming is the first webhook for a new call. It validates the
// numbers, creates the session row, and either starts the bridge dial
// attempt or goes straight to the consent gather.
func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	if !call.ValidE164(f.From) || !call.ValidE164(f.To) {
		// Rejected before any row is created.
		h.logger.Warn("incoming call with invalid number", "call_id", f.CallID, "from", f.From, "to", f.To)
		http.Error(w, "invalid phone number", http.StatusBadRequest)
		return
	}

	cfg, err := routing.LoadConfig(ctx, h.sysConfig)
	if err != nil {
		h.logger.Error("routing config unavailable", "call_id", f.CallID, "error", err)
		h.failPolicy(w, cfg, ivr.LocaleEN, f.CallID)
		return
	}
	loc := ivr.ParseLocale(cfg.DefaultLanguage)

	_, err = h.sessions.Create(ctx, &models.CallSession{
		CallID:     f.CallID,
		FromNumber: f.From,
		ToNumber:   f.To,
		State:      string(call.StateIncoming),
		Language:   cfg.DefaultLanguage,
		PickupMode: string(cfg.PickupMode),
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("session create failed", "call_id", f.CallID, "error", err)
		h.failPolicy(w, cfg, loc, f.CallID)
		return
	}

	if cfg.PickupMode == routing.PickupAfterRings && cfg.HumanLine != "" {
		// Session stays incoming until the dial outcome decides the mode.
		machineDetect := ""
		if cfg.MachineDetection {
			machineDetect = "Enable"
		}
		twiml.New(
			h.ivr.Bridging(loc),
			twiml.Dial{
				Action:         DialStatusPath,
				Timeout:        cfg.RingSeconds(),
				AnswerOnBridge: true,
				MachineDetect:  machineDetect,
				Number:         cfg.HumanLine,
			},
		).Write(w)
		return
	}

	h.startAssisted(ctx, w, f.CallID, loc)
}

// failPolicy applies the configured dependency-failure policy: fail-open
// proceeds down the assisted path with a degraded audit trail, fail-closed
// apologizes and hangs up.
func (h *Handler) failPolicy(w http.ResponseWriter, cfg routing.Config, loc ivr.Locale, callID string) {
	if cfg.Policy == routing.FailClosed {
		h.apology(w, loc)
		return
	}
	h.logger.Warn("proceeding fail-open with degraded audit", "call_id", callID)
	h.ivr.ConsentPrompt(loc, false).Write(w)
}

// startAssisted moves the session into assisted mode and renders the
// consent gather.
func (h *Handler) startAssisted(ctx context.Context, w http.ResponseWriter, callID string, loc ivr.Locale) {
	mode := string(call.ModeAssisted)
	if !h.advance(ctx, callID, string(call.StateAssisted), database.SessionUpdate{Mode: &mode}) ||
		!h.advance(ctx, callID, string(call.StateConsentPending), database.SessionUpdate{}) {
		h.apology(w, loc)
		return
	}
	h.ivr.ConsentPrompt(loc, false).Write(w)
}

// advance applies a state transition. A stale transition means a
// redelivered or out-of-order webhook hit a session that already moved
// on; the persisted state is correct, so the handler proceeds and
// renders the same document it produced the first time. Only a real
// store failure returns false.
func (h *Handler) advance(ctx context.Context, callID, next string, upd database.SessionUpdate) bool {
	if _, err := h.sessions.Transition(ctx, callID, next, upd); err != nil {
		if errors.Is(err, database.ErrStaleTransition) || errors.Is(err, database.ErrModeAlreadySet) {
			h.logger.Info("ignoring out-of-order webhook", "call_id", callID, "error", err)
			return true
		}
		h.logger.Error("session transition failed", "call_id", callID, "error", err)
		return false
	}
	return true
}

// handleDialStatus is the action callback of the initial bridge dial. A
// human answer within the ring threshold confirms bridge mode; anything
// else falls through to assisted intake.
func (h *Handler) handleDialStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.GetByCallID(ctx, f.CallID)
	if err != nil {
		h.logger.Error("unknown call on dial-status", "call_id", f.CallID, "error", err)
		h.apology(w, ivr.LocaleEN)
		return
	}
	loc := h.locale(sess)

	cfg, err := routing.LoadConfig(ctx, h.sysConfig)
	if err != nil {
		h.logger.Error("routing config unavailable", "call_id", f.CallID, "error", err)
		h.failPolicy(w, cfg, loc, f.CallID)
		return
	}

	dialStatus, _ := call.ParseCarrierStatus(f.DialStatus)
	answeredBy := call.ParseAnsweredBy(f.AnsweredBy)
	answerAfter := answerLatency(sess.StartedAt, f.DialDuration)

	if cfg.DecideAnswer(dialStatus, answeredBy, answerAfter) == call.ModeBridge {
		mode := string(call.ModeBridge)
		route := string(call.RouteLine)
		if !h.advance(ctx, f.CallID, string(call.StateBridging), database.SessionUpdate{
			Mode:       &mode,
			RouteTaken: &route,
		}) {
			h.apology(w, loc)
			return
		}
		// The bridged conversation already ran; this callback fires when
		// the dialed leg ends.
		twiml.New(twiml.Hangup{}).Write(w)
		return
	}

	h.startAssisted(ctx, w, f.CallID, loc)
}

// answerLatency estimates how long the bridged leg rang before being
// answered. The dial action callback fires when the leg ends, so the
// session's total elapsed time includes the whole conversation;
// subtracting the reported conversation length leaves the ring time.
// Without a reported duration the latency is zero: the Dial verb's
// timeout attribute already bounded ringing at the carrier.
func answerLatency(startedAt time.Time, dialDuration string) time.Duration {
	secs, err := strconv.Atoi(dialDuration)
	if err != nil || secs < 0 {
		return 0
	}
	latency := time.Since(startedAt) - time.Duration(secs)*time.Second
	if latency < 0 {
		return 0
	}
	return latency
}

// handleConsent interprets the consent gather. Digit 1 grants and moves
// to the destination menu, 9 declines and ends the call opted out,
// anything else or no input reprompts once and then falls through to
// voicemail with consent recorded as timeout.
func (h *Handler) handleConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	retried := r.URL.Query().Get("retry") == "1"

	sess, err := h.sessions.GetByCallID(ctx, f.CallID)
	if err != nil {
		h.logger.Error("unknown call on consent", "call_id", f.CallID, "error", err)
		h.apology(w, ivr.LocaleEN)
		return
	}
	loc := h.locale(sess)

	digit, ok := call.ParseDigit(f.Digits)
	switch h.ivr.InterpretConsent(digit, ok, retried) {
	case ivr.ConsentAccept:
		if !h.recordConsent(ctx, sess, call.ConsentGranted, f.Digits) {
			h.apology(w, loc)
			return
		}
		status := string(call.ConsentGranted)
		if !h.advance(ctx, f.CallID, string(call.StateRouted), database.SessionUpdate{ConsentStatus: &status}) {
			h.apology(w, loc)
			return
		}
		h.ivr.MenuPrompt(loc, false).Write(w)

	case ivr.ConsentDecline:
		if !h.recordConsent(ctx, sess, call.ConsentDenied, f.Digits) {
			h.apology(w, loc)
			return
		}
		status := string(call.ConsentDenied)
		if !h.advance(ctx, f.CallID, string(call.StateOptedOut), database.SessionUpdate{ConsentStatus: &status}) {
			h.apology(w, loc)
			return
		}
		h.ivr.OptOut(loc).Write(w)

	case ivr.ConsentRetry:
		h.ivr.ConsentPrompt(loc, true).Write(w)

	case ivr.ConsentFallthrough:
		if !h.recordConsent(ctx, sess, call.ConsentTimeout, f.Digits) {
			h.apology(w, loc)
			return
		}
		status := string(call.ConsentTimeout)
		route := string(call.RouteVoicemail)
		if !h.advance(ctx, f.CallID, string(call.StateInProgress), database.SessionUpdate{
			ConsentStatus: &status,
			RouteTaken:    &route,
		}) {
			h.apology(w, loc)
			return
		}
		// The call continues unrecorded.
		h.ivr.Voicemail(loc, VoicemailPath, voicemailMaxSeconds).Write(w)
	}
}

// recordConsent appends the audit row before any downstream action. The
// caller number enters the table only as a one-way hash; redelivery of
// the same decision is deduplicated by the store.
func (h *Handler) recordConsent(ctx context.Context, sess *models.CallSession, status call.ConsentStatus, digits string) bool {
	inserted, err := h.consents.Record(ctx, &models.ConsentRecord{
		CallID:     sess.CallID,
		CallerHash: database.HashCallerNumber(sess.FromNumber),
		Status:     string(status),
		Language:   sess.Language,
		DigitInput: digits,
	})
	if err != nil {
		h.logger.Error("consent record failed", "call_id", sess.CallID, "status", status, "error", err)
		return false
	}
	if !inserted {
		h.logger.Debug("consent decision redelivered", "call_id", sess.CallID, "status", status)
	}
	return true
}

// handleMenu interprets the destination menu. 1 bridges to the front
// desk line, 2 starts assisted intake; invalid input or timeout reprompts
// once and then defaults to voicemail.
func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	retried := r.URL.Query().Get("retry") == "1"

	sess, err := h.sessions.GetByCallID(ctx, f.CallID)
	if err != nil {
		h.logger.Error("unknown call on menu", "call_id", f.CallID, "error", err)
		h.apology(w, ivr.LocaleEN)
		return
	}
	loc := h.locale(sess)

	digit, ok := call.ParseDigit(f.Digits)
	switch h.ivr.InterpretMenu(digit, ok, retried) {
	case ivr.MenuFrontDesk:
		cfg, cfgErr := routing.LoadConfig(ctx, h.sysConfig)
		if cfgErr != nil || cfg.HumanLine == "" {
			h.logger.Warn("front desk selected but no line available", "call_id", f.CallID, "error", cfgErr)
			h.routeVoicemail(ctx, w, f.CallID, loc)
			return
		}
		route := string(call.RouteLine)
		if !h.advance(ctx, f.CallID, string(call.StateInProgress), database.SessionUpdate{RouteTaken: &route}) {
			h.apology(w, loc)
			return
		}
		twiml.New(
			h.ivr.Bridging(loc),
			twiml.Dial{Number: cfg.HumanLine, AnswerOnBridge: true},
		).Write(w)

	case ivr.MenuAssistant:
		route := string(call.RouteIntake)
		if !h.advance(ctx, f.CallID, string(call.StateInProgress), database.SessionUpdate{RouteTaken: &route}) {
			h.apology(w, loc)
			return
		}
		// The intake handler opens with the greeting on its first entry.
		twiml.New(twiml.Redirect{Method: "POST", URL: IntakePath}).Write(w)

	case ivr.MenuRetry:
		h.ivr.MenuPrompt(loc, true).Write(w)

	case ivr.MenuFallthrough:
		h.routeVoicemail(ctx, w, f.CallID, loc)
	}
}

// routeVoicemail records the voicemail route and renders the record verb.
func (h *Handler) routeVoicemail(ctx context.Context, w http.ResponseWriter, callID string, loc ivr.Locale) {
	route := string(call.RouteVoicemail)
	if !h.advance(ctx, callID, string(call.StateInProgress), database.SessionUpdate{RouteTaken: &route}) {
		h.apology(w, loc)
		return
	}
	h.ivr.Voicemail(loc, VoicemailPath, voicemailMaxSeconds).Write(w)
}

// handleIntake runs one assisted-conversation turn. Conversation state
// and captured fields are persisted between webhooks; a handoff result
// bridges to the human line when one is configured.
func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.GetByCallID(ctx, f.CallID)
	if err != nil {
		h.logger.Error("unknown call on intake", "call_id", f.CallID, "error", err)
		h.apology(w, ivr.LocaleEN)
		return
	}
	loc := h.locale(sess)

	raw, err := h.sessions.GetIntakeState(ctx, f.CallID)
	if err != nil {
		h.logger.Error("intake state read failed", "call_id", f.CallID, "error", err)
		h.apology(w, loc)
		return
	}
	st, err := intake.DecodeState(raw)
	if err != nil {
		h.logger.Error("intake state corrupt, restarting conversation", "call_id", f.CallID, "error", err)
		st = &intake.State{}
	}

	fields := map[string]string{}
	if sess.CapturedFields != "" {
		if err := json.Unmarshal([]byte(sess.CapturedFields), &fields); err != nil {
			h.logger.Warn("captured fields corrupt", "call_id", f.CallID, "error", err)
			fields = map[string]string{}
		}
	}

	var reply string
	var handoff, forced bool

	if !st.Greeted {
		st.Greeted = true
		reply = h.intake.Greeting()
	} else {
		res := h.intake.ProcessTurn(ctx, f.CallID, st, fields, f.SpeechResult)
		reply, handoff, forced = res.Reply, res.Handoff, res.Forced
		fields = res.Fields
	}

	if err := h.persistIntake(ctx, f.CallID, st, fields, handoff); err != nil {
		h.logger.Error("intake persist failed", "call_id", f.CallID, "error", err)
		h.apology(w, loc)
		return
	}

	if handoff {
		if forced {
			h.logger.Warn("intake escalation forced", "call_id", f.CallID)
		}
		h.handoffResponse(ctx, w, f.CallID, loc, reply)
		return
	}

	twiml.New(
		twiml.Gather{
			Action:        IntakePath,
			Method:        "POST",
			Input:         "speech",
			SpeechTimeout: "auto",
			Timeout:       8,
			Say:           &twiml.Say{Text: reply},
		},
		// Gather falls through on silence; re-enter with no utterance so
		// the empty-turn budget applies.
		twiml.Redirect{Method: "POST", URL: IntakePath},
	).Write(w)
}

// persistIntake writes conversation state, captured fields, and the
// handoff flag in that order. Field persistence failing after state is
// tolerable; the reverse would lose a turn.
func (h *Handler) persistIntake(ctx context.Context, callID string, st *intake.State, fields map[string]string, handoff bool) error {
	if err := h.sessions.SetIntakeState(ctx, callID, st.Encode()); err != nil {
		return err
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := h.sessions.SetCapturedFields(ctx, callID, string(fieldsJSON)); err != nil {
		return err
	}
	if handoff {
		return h.sessions.SetHandoff(ctx, callID)
	}
	return nil
}

// handoffResponse speaks the final assistant line and bridges to the
// human line, falling back to voicemail when no line is configured.
func (h *Handler) handoffResponse(ctx context.Context, w http.ResponseWriter, callID string, loc ivr.Locale, reply string) {
	cfg, err := routing.LoadConfig(ctx, h.sysConfig)
	if err != nil || cfg.HumanLine == "" {
		h.logger.Warn("handoff requested but no line available", "call_id", callID, "error", err)
		resp := h.ivr.Voicemail(loc, VoicemailPath, voicemailMaxSeconds)
		resp.Verbs = append([]any{&twiml.Say{Text: reply}}, resp.Verbs...)
		resp.Write(w)
		return
	}
	twiml.New(
		&twiml.Say{Text: reply},
		twiml.Dial{Number: cfg.HumanLine, AnswerOnBridge: true},
	).Write(w)
}

// handleStatus processes call status callbacks. A terminal status closes
// the session and runs the post-call pipeline; redelivery is a no-op.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	status, err := call.ParseCarrierStatus(f.CallStatus)
	if err != nil {
		h.logger.Warn("unrecognized call status", "call_id", f.CallID, "status", f.CallStatus)
		w.WriteHeader(http.StatusOK)
		return
	}
	if !status.Terminal() {
		if status == call.StatusInProgress {
			// A bridged call otherwise never passes through in_progress;
			// assisted calls reach it through the consent and menu flow,
			// so only advance from bridging here.
			sess, getErr := h.sessions.GetByCallID(ctx, f.CallID)
			if getErr == nil && sess.State == string(call.StateBridging) {
				h.advance(ctx, f.CallID, string(call.StateInProgress), database.SessionUpdate{})
			}
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	ended := time.Now().UTC()
	noop, err := h.sessions.Transition(ctx, f.CallID, string(call.StateCompleted), database.SessionUpdate{EndedAt: &ended})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.logger.Warn("terminal status for unknown call", "call_id", f.CallID)
		} else {
			h.logger.Error("closing session failed", "call_id", f.CallID, "error", err)
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	if noop {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.processor.Process(ctx, f.CallID); err != nil {
		h.logger.Error("post-call processing failed", "call_id", f.CallID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// handleRecording stores the carrier's recording reference.
func (h *Handler) handleRecording(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	if f.RecordingURL != "" {
		if err := h.sessions.SetRecordingRef(ctx, f.CallID, f.RecordingURL); err != nil {
			h.logger.Error("storing recording ref failed", "call_id", f.CallID, "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleVoicemail is the record-verb action: store the message reference
// and thank the caller.
func (h *Handler) handleVoicemail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.GetByCallID(ctx, f.CallID)
	loc := ivr.LocaleEN
	if err == nil {
		loc = h.locale(sess)
	}

	if f.RecordingURL != "" {
		if err := h.sessions.SetRecordingRef(ctx, f.CallID, f.RecordingURL); err != nil {
			h.logger.Error("storing voicemail ref failed", "call_id", f.CallID, "error", err)
		}
	}
	h.ivr.VoicemailThanks(loc).Write(w)
}

// handleTranscription stores the transcript reference once the carrier
// finishes transcribing a recording. Failed transcriptions are
// acknowledged and dropped.
func (h *Handler) handleTranscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseCallbackForm(r)
	if err != nil || f.CallID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	if f.TranscriptionStatus == "completed" && f.TranscriptionURL != "" {
		if err := h.sessions.SetTranscriptRef(ctx, f.CallID, f.TranscriptionURL); err != nil {
			h.logger.Error("storing transcript ref failed", "call_id", f.CallID, "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}
