package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/callgreet/callgreet/internal/ai"
	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/database/models"
	"github.com/callgreet/callgreet/internal/intake"
	"github.com/callgreet/callgreet/internal/ivr"
)

const (
	testBase      = "https://callgreet.example.com"
	testToken     = "test-auth-token"
	testHumanLine = "+15550001111"
)

type recordedProcessor struct {
	calls []string
}

func (p *recordedProcessor) Process(_ context.Context, callID string) error {
	p.calls = append(p.calls, callID)
	return nil
}

type cannedCompletion struct {
	reply string
}

func (c *cannedCompletion) Complete(_ context.Context, _ []ai.Message) (string, error) {
	return c.reply, nil
}

type fixture struct {
	mux        *chi.Mux
	verifier   *Verifier
	db         *database.DB
	sessions   database.CallSessionRepository
	consents   database.ConsentRepository
	sysConfig  database.SystemConfigRepository
	processor  *recordedProcessor
	completion *cannedCompletion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	sysConfig, err := database.NewSystemConfigRepository(ctx, db)
	if err != nil {
		t.Fatalf("sysconfig: %v", err)
	}

	sessions := database.NewCallSessionRepository(db)
	consents := database.NewConsentRepository(db)
	processor := &recordedProcessor{}
	completion := &cannedCompletion{reply: `{"reply": "How can I help?"}`}
	logger := slog.New(slog.DiscardHandler)

	intakeEngine := intake.NewEngine(completion, nil,
		intake.Profile{BusinessName: "Rivera Dental"}, 3, time.Second, logger)

	verifier := NewVerifier(testToken)
	h := NewHandler(verifier, testBase, sessions, consents, sysConfig,
		ivr.NewEngine(), intakeEngine, processor, logger)

	mux := chi.NewRouter()
	mux.Mount("/webhooks/voice", h.Routes())

	return &fixture{
		mux:        mux,
		verifier:   verifier,
		db:         db,
		sessions:   sessions,
		consents:   consents,
		sysConfig:  sysConfig,
		processor:  processor,
		completion: completion,
	}
}

func (fx *fixture) set(t *testing.T, key, value string) {
	t.Helper()
	if err := fx.sysConfig.Set(context.Background(), key, value); err != nil {
		t.Fatalf("setting %s: %v", key, err)
	}
}

// post sends a correctly signed webhook.
func (fx *fixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, fx.verifier.Sign(testBase+path, form))
	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)
	return rec
}

// backdateStart shifts a session's start time into the past, as if the
// call had been ringing or talking for a while already.
func (fx *fixture) backdateStart(t *testing.T, callID string, ago time.Duration) {
	t.Helper()
	started := time.Now().UTC().Add(-ago)
	if _, err := fx.db.ExecContext(context.Background(),
		`UPDATE call_sessions SET started_at = ? WHERE call_id = ?`, started, callID); err != nil {
		t.Fatalf("backdating %s: %v", callID, err)
	}
}

func callForm(callID string, extra map[string]string) url.Values {
	form := url.Values{}
	form.Set("CallSid", callID)
	form.Set("From", "+15551234567")
	form.Set("To", "+15557654321")
	for k, v := range extra {
		form.Set(k, v)
	}
	return form
}

// seedConsentPending creates a session that has reached the consent
// gather via the immediate-assisted path.
func (fx *fixture) seedConsentPending(t *testing.T, callID string) {
	t.Helper()
	fx.set(t, database.KeyPickupMode, "immediate")
	rec := fx.post(t, IncomingPath, callForm(callID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding call: status %d", rec.Code)
	}
}

// seedRouted advances a consent-pending session past consent grant.
func (fx *fixture) seedRouted(t *testing.T, callID string) {
	t.Helper()
	fx.seedConsentPending(t, callID)
	rec := fx.post(t, ConsentPath, callForm(callID, map[string]string{"Digits": "1"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding consent: status %d", rec.Code)
	}
}

// seedIntake routes a session to the assistant.
func (fx *fixture) seedIntake(t *testing.T, callID string) {
	t.Helper()
	fx.seedRouted(t, callID)
	rec := fx.post(t, MenuPath, callForm(callID, map[string]string{"Digits": "2"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding menu: status %d", rec.Code)
	}
}

func (fx *fixture) session(t *testing.T, callID string) *models.CallSession {
	t.Helper()
	sess, err := fx.sessions.GetByCallID(context.Background(), callID)
	if err != nil {
		t.Fatalf("loading session %s: %v", callID, err)
	}
	return sess
}

func TestMissingSignatureRejected(t *testing.T) {
	fx := newFixture(t)
	form := callForm("CA1", nil)

	req := httptest.NewRequest(http.MethodPost, IncomingPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if _, err := fx.sessions.GetByCallID(context.Background(), "CA1"); err == nil {
		t.Error("forged webhook created a session")
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	fx := newFixture(t)
	form := callForm("CA1", nil)
	signed := fx.verifier.Sign(testBase+IncomingPath, form)
	form.Set("From", "+15559999999") // tamper after signing

	req := httptest.NewRequest(http.MethodPost, IncomingPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, signed)
	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if _, err := fx.sessions.GetByCallID(context.Background(), "CA1"); err == nil {
		t.Error("tampered webhook created a session")
	}
}

func TestIncomingRejectsInvalidNumber(t *testing.T) {
	fx := newFixture(t)
	form := callForm("CA2", nil)
	form.Set("From", "not-a-number")

	rec := fx.post(t, IncomingPath, form)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if _, err := fx.sessions.GetByCallID(context.Background(), "CA2"); err == nil {
		t.Error("invalid number still created a session")
	}
}

func TestIncomingImmediateGoesToConsent(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyPickupMode, "immediate")

	rec := fx.post(t, IncomingPath, callForm("CA3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Gather") || !strings.Contains(body, ConsentPath) {
		t.Errorf("expected consent gather, got:\n%s", body)
	}

	sess := fx.session(t, "CA3")
	if sess.State != string(call.StateConsentPending) {
		t.Errorf("state = %q, want consent_pending", sess.State)
	}
	if sess.Mode != string(call.ModeAssisted) {
		t.Errorf("mode = %q, want assisted", sess.Mode)
	}
}

func TestIncomingAfterRingsDialsHumanLine(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)

	rec := fx.post(t, IncomingPath, callForm("CA4", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "<Dial") || !strings.Contains(body, testHumanLine) {
		t.Errorf("expected bridge dial, got:\n%s", body)
	}
	if !strings.Contains(body, DialStatusPath) {
		t.Error("dial verb missing its action callback")
	}

	sess := fx.session(t, "CA4")
	if sess.State != string(call.StateIncoming) {
		t.Errorf("state = %q, want incoming until dial outcome", sess.State)
	}
	if sess.Mode != "" {
		t.Errorf("mode = %q, want unset before dial outcome", sess.Mode)
	}
}

func TestIncomingRedeliveryIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyPickupMode, "immediate")

	first := fx.post(t, IncomingPath, callForm("CA5", nil))
	second := fx.post(t, IncomingPath, callForm("CA5", nil))
	if second.Code != http.StatusOK {
		t.Fatalf("redelivered webhook status = %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("redelivered initial webhook produced different markup")
	}
}

func TestDialStatusNoAnswerFallsToAssisted(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.post(t, IncomingPath, callForm("CA6", nil))

	rec := fx.post(t, DialStatusPath, callForm("CA6", map[string]string{
		"DialCallStatus": "no-answer",
	}))
	if !strings.Contains(rec.Body.String(), "<Gather") {
		t.Errorf("expected consent gather, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA6")
	if sess.Mode != string(call.ModeAssisted) {
		t.Errorf("mode = %q, want assisted", sess.Mode)
	}
	if sess.State != string(call.StateConsentPending) {
		t.Errorf("state = %q, want consent_pending", sess.State)
	}
}

func TestDialStatusAnsweredConfirmsBridge(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.post(t, IncomingPath, callForm("CA7", nil))

	rec := fx.post(t, DialStatusPath, callForm("CA7", map[string]string{
		"DialCallStatus": "completed",
		"AnsweredBy":     "human",
	}))
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Errorf("expected hangup after bridged leg ended, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA7")
	if sess.Mode != string(call.ModeBridge) {
		t.Errorf("mode = %q, want bridge", sess.Mode)
	}
	if sess.RouteTaken != string(call.RouteLine) {
		t.Errorf("route = %q, want line", sess.RouteTaken)
	}
}

func TestDialStatusLongConversationStillBridges(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.post(t, IncomingPath, callForm("CA30", nil))

	// The dial action callback arrives after the bridged leg ends, so by
	// then the session is minutes old. The conversation length accounts
	// for almost all of it; the answer itself was quick.
	fx.backdateStart(t, "CA30", 5*time.Minute)

	rec := fx.post(t, DialStatusPath, callForm("CA30", map[string]string{
		"DialCallStatus":   "completed",
		"AnsweredBy":       "human",
		"DialCallDuration": "290",
	}))
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Errorf("expected hangup after bridged leg ended, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA30")
	if sess.Mode != string(call.ModeBridge) {
		t.Errorf("mode = %q, want bridge", sess.Mode)
	}
}

func TestDialStatusMissingDurationDefersToCarrierTimeout(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.post(t, IncomingPath, callForm("CA31", nil))
	fx.backdateStart(t, "CA31", 5*time.Minute)

	// No reported conversation length. The dial verb's timeout already
	// bounded ringing at the carrier, so a completed human answer is a
	// bridge regardless of total elapsed time.
	rec := fx.post(t, DialStatusPath, callForm("CA31", map[string]string{
		"DialCallStatus": "completed",
		"AnsweredBy":     "human",
	}))
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Errorf("expected hangup, got:\n%s", rec.Body.String())
	}
	if fx.session(t, "CA31").Mode != string(call.ModeBridge) {
		t.Error("mode not bridge for completed human answer")
	}
}

func TestDialStatusSlowAnswerFallsToAssisted(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.post(t, IncomingPath, callForm("CA32", nil))
	fx.backdateStart(t, "CA32", 5*time.Minute)

	// A ten-second conversation at the end of a five-minute-old session
	// means the line rang far past the pickup threshold before answering.
	rec := fx.post(t, DialStatusPath, callForm("CA32", map[string]string{
		"DialCallStatus":   "completed",
		"AnsweredBy":       "human",
		"DialCallDuration": "10",
	}))
	if !strings.Contains(rec.Body.String(), "<Gather") {
		t.Errorf("expected consent gather, got:\n%s", rec.Body.String())
	}
	if fx.session(t, "CA32").Mode != string(call.ModeAssisted) {
		t.Error("mode not assisted after slow answer")
	}
}

func TestConsentGrantedShowsMenu(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA8")

	rec := fx.post(t, ConsentPath, callForm("CA8", map[string]string{"Digits": "1"}))
	if !strings.Contains(rec.Body.String(), MenuPath) {
		t.Errorf("expected destination menu, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA8")
	if sess.State != string(call.StateRouted) {
		t.Errorf("state = %q, want routed", sess.State)
	}
	if sess.ConsentStatus != string(call.ConsentGranted) {
		t.Errorf("consent = %q, want granted", sess.ConsentStatus)
	}

	recs, err := fx.consents.ListByCallID(context.Background(), "CA8")
	if err != nil || len(recs) != 1 {
		t.Fatalf("consent rows = %d (%v), want 1", len(recs), err)
	}
	if recs[0].CallerHash == "+15551234567" || recs[0].CallerHash == "" {
		t.Error("caller number stored raw or missing in consent record")
	}
}

func TestConsentRedeliveryReproducesMenu(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA9")

	first := fx.post(t, ConsentPath, callForm("CA9", map[string]string{"Digits": "1"}))
	second := fx.post(t, ConsentPath, callForm("CA9", map[string]string{"Digits": "1"}))
	if first.Body.String() != second.Body.String() {
		t.Error("redelivered consent webhook produced different markup")
	}

	recs, _ := fx.consents.ListByCallID(context.Background(), "CA9")
	if len(recs) != 1 {
		t.Errorf("consent rows = %d after redelivery, want 1", len(recs))
	}
}

func TestConsentDeclinedOptsOut(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA10")

	rec := fx.post(t, ConsentPath, callForm("CA10", map[string]string{"Digits": "9"}))
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Errorf("expected opt-out hangup, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA10")
	if sess.State != string(call.StateOptedOut) {
		t.Errorf("state = %q, want opted_out", sess.State)
	}
	if sess.ConsentStatus != string(call.ConsentDenied) {
		t.Errorf("consent = %q, want denied", sess.ConsentStatus)
	}
}

func TestConsentTimeoutRepromptsOnceThenVoicemail(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA11")

	// First timeout: reprompt, no consent row yet.
	rec := fx.post(t, ConsentPath, callForm("CA11", nil))
	if !strings.Contains(rec.Body.String(), ConsentPath+"?retry=1") {
		t.Errorf("expected retry-marked reprompt, got:\n%s", rec.Body.String())
	}
	if recs, _ := fx.consents.ListByCallID(context.Background(), "CA11"); len(recs) != 0 {
		t.Errorf("consent rows = %d after first timeout, want 0", len(recs))
	}

	// Second timeout: consent timeout recorded, voicemail fallback.
	rec = fx.post(t, ConsentPath+"?retry=1", callForm("CA11", nil))
	if !strings.Contains(rec.Body.String(), "<Record") {
		t.Errorf("expected voicemail record verb, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA11")
	if sess.ConsentStatus != string(call.ConsentTimeout) {
		t.Errorf("consent = %q, want timeout", sess.ConsentStatus)
	}
	if sess.RouteTaken != string(call.RouteVoicemail) {
		t.Errorf("route = %q, want voicemail", sess.RouteTaken)
	}
}

func TestInvalidConsentDigitTreatedAsTimeout(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA12")

	rec := fx.post(t, ConsentPath, callForm("CA12", map[string]string{"Digits": "5"}))
	if !strings.Contains(rec.Body.String(), "?retry=1") {
		t.Errorf("invalid digit should reprompt like a timeout, got:\n%s", rec.Body.String())
	}
}

func TestMenuFrontDeskBridges(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.seedRouted(t, "CA13")

	rec := fx.post(t, MenuPath, callForm("CA13", map[string]string{"Digits": "1"}))
	if !strings.Contains(rec.Body.String(), testHumanLine) {
		t.Errorf("expected bridge to front desk, got:\n%s", rec.Body.String())
	}

	sess := fx.session(t, "CA13")
	if sess.RouteTaken != string(call.RouteLine) {
		t.Errorf("route = %q, want line", sess.RouteTaken)
	}
	if sess.State != string(call.StateInProgress) {
		t.Errorf("state = %q, want in_progress", sess.State)
	}
}

func TestMenuAssistantRedirectsToIntake(t *testing.T) {
	fx := newFixture(t)
	fx.seedRouted(t, "CA14")

	rec := fx.post(t, MenuPath, callForm("CA14", map[string]string{"Digits": "2"}))
	if !strings.Contains(rec.Body.String(), IntakePath) {
		t.Errorf("expected redirect to intake, got:\n%s", rec.Body.String())
	}
	if fx.session(t, "CA14").RouteTaken != string(call.RouteIntake) {
		t.Error("route not set to intake")
	}
}

func TestMenuFallthroughDefaultsToVoicemail(t *testing.T) {
	fx := newFixture(t)
	fx.seedRouted(t, "CA15")

	rec := fx.post(t, MenuPath+"?retry=1", callForm("CA15", nil))
	if !strings.Contains(rec.Body.String(), "<Record") {
		t.Errorf("expected voicemail fallback, got:\n%s", rec.Body.String())
	}
	if fx.session(t, "CA15").RouteTaken != string(call.RouteVoicemail) {
		t.Error("route not set to voicemail")
	}
}

func TestIntakeGreetsThenGathersSpeech(t *testing.T) {
	fx := newFixture(t)
	fx.seedIntake(t, "CA16")

	rec := fx.post(t, IntakePath, callForm("CA16", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "Rivera Dental") {
		t.Errorf("greeting missing business name:\n%s", body)
	}
	if !strings.Contains(body, `input="speech"`) {
		t.Errorf("intake gather must collect speech:\n%s", body)
	}
}

func TestIntakeHandoffBridgesToHuman(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.seedIntake(t, "CA17")
	fx.post(t, IntakePath, callForm("CA17", nil)) // greeting turn

	rec := fx.post(t, IntakePath, callForm("CA17", map[string]string{
		"SpeechResult": "I want to talk to a real person",
	}))
	if !strings.Contains(rec.Body.String(), testHumanLine) {
		t.Errorf("expected handoff dial, got:\n%s", rec.Body.String())
	}
	if !fx.session(t, "CA17").Handoff {
		t.Error("handoff flag not persisted")
	}
}

func TestIntakePersistsCapturedFields(t *testing.T) {
	fx := newFixture(t)
	fx.seedIntake(t, "CA18")
	fx.post(t, IntakePath, callForm("CA18", nil)) // greeting turn

	fx.completion.reply = `{"reply": "Thanks Jane. What number can we reach you on?", "fields": {"name": "Jane Doe"}}`
	fx.post(t, IntakePath, callForm("CA18", map[string]string{
		"SpeechResult": "Hi, this is Jane Doe",
	}))

	sess := fx.session(t, "CA18")
	if !strings.Contains(sess.CapturedFields, "Jane Doe") {
		t.Errorf("captured fields = %q", sess.CapturedFields)
	}
}

func TestTerminalStatusRunsPostCallOnce(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA19")

	form := callForm("CA19", map[string]string{"CallStatus": "completed"})
	if rec := fx.post(t, StatusPath, form); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := fx.post(t, StatusPath, form); rec.Code != http.StatusOK {
		t.Fatalf("redelivered status = %d", rec.Code)
	}

	if len(fx.processor.calls) != 1 {
		t.Errorf("post-call processor ran %d times, want 1", len(fx.processor.calls))
	}

	sess := fx.session(t, "CA19")
	if sess.State != string(call.StateCompleted) {
		t.Errorf("state = %q, want completed", sess.State)
	}
	if sess.EndedAt == nil {
		t.Error("ended_at not set")
	}
}

func TestNonTerminalStatusIgnored(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA20")

	fx.post(t, StatusPath, callForm("CA20", map[string]string{"CallStatus": "ringing"}))
	if len(fx.processor.calls) != 0 {
		t.Error("processor ran for a non-terminal status")
	}
	if fx.session(t, "CA20").State != string(call.StateConsentPending) {
		t.Error("non-terminal status changed session state")
	}
}

func TestInProgressStatusAdvancesBridgedCall(t *testing.T) {
	fx := newFixture(t)
	fx.set(t, database.KeyHumanLine, testHumanLine)
	fx.post(t, IncomingPath, callForm("CA25", nil))
	fx.post(t, DialStatusPath, callForm("CA25", map[string]string{
		"DialCallStatus": "completed",
		"AnsweredBy":     "human",
	}))

	fx.post(t, StatusPath, callForm("CA25", map[string]string{"CallStatus": "in-progress"}))
	if fx.session(t, "CA25").State != string(call.StateInProgress) {
		t.Errorf("state = %q, want in_progress", fx.session(t, "CA25").State)
	}

	fx.post(t, StatusPath, callForm("CA25", map[string]string{"CallStatus": "completed"}))
	sess := fx.session(t, "CA25")
	if sess.State != string(call.StateCompleted) {
		t.Errorf("state = %q, want completed", sess.State)
	}
	if len(fx.processor.calls) != 1 {
		t.Errorf("post-call processor ran %d times, want 1", len(fx.processor.calls))
	}
}

func TestInProgressStatusLeavesAssistedFlowAlone(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA26")

	// The carrier reports in-progress as soon as the call is answered,
	// which for an assisted call is before consent. The flow advances
	// through its own gathers, not through status callbacks.
	fx.post(t, StatusPath, callForm("CA26", map[string]string{"CallStatus": "in-progress"}))
	if fx.session(t, "CA26").State != string(call.StateConsentPending) {
		t.Error("in-progress status disturbed the consent flow")
	}
}

func TestRecordingCallbackStoresRef(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA21")

	fx.post(t, RecordingPath, callForm("CA21", map[string]string{
		"RecordingUrl": "https://carrier.example.com/rec/CA21",
	}))

	sess := fx.session(t, "CA21")
	if sess.RecordingRef == nil || *sess.RecordingRef != "https://carrier.example.com/rec/CA21" {
		t.Errorf("recording ref = %v", sess.RecordingRef)
	}
}

func TestVoicemailCallbackThanksCaller(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA22")

	rec := fx.post(t, VoicemailPath, callForm("CA22", map[string]string{
		"RecordingUrl": "https://carrier.example.com/vm/CA22",
	}))
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Errorf("expected close-out, got:\n%s", rec.Body.String())
	}
	if fx.session(t, "CA22").RecordingRef == nil {
		t.Error("voicemail ref not stored")
	}
}

func TestTranscriptionCallbackStoresRef(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA23")

	fx.post(t, TranscriptionPath, callForm("CA23", map[string]string{
		"TranscriptionStatus": "completed",
		"TranscriptionUrl":    "https://carrier.example.com/tr/CA23",
	}))

	sess := fx.session(t, "CA23")
	if sess.TranscriptRef == nil || *sess.TranscriptRef != "https://carrier.example.com/tr/CA23" {
		t.Errorf("transcript ref = %v", sess.TranscriptRef)
	}
}

func TestFailedTranscriptionIgnored(t *testing.T) {
	fx := newFixture(t)
	fx.seedConsentPending(t, "CA24")

	fx.post(t, TranscriptionPath, callForm("CA24", map[string]string{
		"TranscriptionStatus": "failed",
	}))

	if fx.session(t, "CA24").TranscriptRef != nil {
		t.Error("failed transcription stored a ref")
	}
}
