package email

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/smtp"
	"os"
	"strings"
	"testing"
	"time"
)

// mockSMTPClient implements smtpClient for testing.
type mockSMTPClient struct {
	helloCalled bool
	tlsCalled   bool
	authCalled  bool
	mailFrom    string
	rcptTo      string
	dataWritten []byte
	quitCalled  bool
	closeCalled bool
	authErr     error
	rcptErr     error
}

func (m *mockSMTPClient) Hello(_ string) error { m.helloCalled = true; return nil }
func (m *mockSMTPClient) Extension(ext string) (bool, string) {
	if ext == "STARTTLS" {
		return true, ""
	}
	return false, ""
}
func (m *mockSMTPClient) StartTLS(_ *tls.Config) error { m.tlsCalled = true; return nil }
func (m *mockSMTPClient) Auth(_ smtp.Auth) error {
	m.authCalled = true
	return m.authErr
}
func (m *mockSMTPClient) Mail(from string) error {
	m.mailFrom = from
	return nil
}
func (m *mockSMTPClient) Rcpt(to string) error {
	m.rcptTo = to
	return m.rcptErr
}
func (m *mockSMTPClient) Data() (io.WriteCloser, error) {
	return &mockWriteCloser{mock: m}, nil
}
func (m *mockSMTPClient) Quit() error  { m.quitCalled = true; return nil }
func (m *mockSMTPClient) Close() error { m.closeCalled = true; return nil }

type mockWriteCloser struct {
	mock *mockSMTPClient
}

func (w *mockWriteCloser) Write(p []byte) (int, error) {
	w.mock.dataWritten = append(w.mock.dataWritten, p...)
	return len(p), nil
}

func (w *mockWriteCloser) Close() error { return nil }

func newTestSender(mock *mockSMTPClient) *Sender {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewSender(logger)
	s.dialFunc = func(_ string, _ *tls.Config, _ string) (smtpClient, error) {
		return mock, nil
	}
	return s
}

func testConfig() SMTPConfig {
	return SMTPConfig{
		Host:     "mail.example.com",
		Port:     "587",
		From:     "callgreet@example.com",
		Username: "user",
		Password: "pass",
		TLS:      "starttls",
	}
}

func TestSendCallSummary(t *testing.T) {
	mock := &mockSMTPClient{}
	sender := newTestSender(mock)

	summary := CallSummary{
		To:           "owner@example.com",
		BusinessName: "Rivera Dental",
		CallID:       "CA100",
		Route:        "intake",
		StartedAt:    time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		DurationSecs: 125,
		Fields: map[string]string{
			"name":            "Jane Doe",
			"callback_number": "***-***-4567",
		},
		Transcript: "caller: I'd like an appointment.\nassistant: Of course.",
	}

	if err := sender.SendCallSummary(context.Background(), testConfig(), summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !mock.helloCalled || !mock.tlsCalled || !mock.authCalled {
		t.Error("expected hello, starttls, and auth to be called")
	}
	if mock.mailFrom != "callgreet@example.com" {
		t.Errorf("mail from = %q", mock.mailFrom)
	}
	if mock.rcptTo != "owner@example.com" {
		t.Errorf("rcpt to = %q", mock.rcptTo)
	}
	if !mock.quitCalled {
		t.Error("expected Quit to be called")
	}

	body := string(mock.dataWritten)
	if !strings.Contains(body, "Subject: Call summary for Rivera Dental") {
		t.Errorf("missing subject in message:\n%s", body)
	}
	if !strings.Contains(body, "Call ID: CA100") {
		t.Error("missing call id in message")
	}
	if !strings.Contains(body, "Duration: 2m 5s") {
		t.Error("missing formatted duration")
	}
	if !strings.Contains(body, "callback number: ***-***-4567") {
		t.Error("missing captured field")
	}
	if !strings.Contains(body, "I'd like an appointment.") {
		t.Error("missing transcript")
	}
}

func TestSendCallSummaryHandoffSubject(t *testing.T) {
	mock := &mockSMTPClient{}
	sender := newTestSender(mock)

	summary := CallSummary{
		To:           "owner@example.com",
		BusinessName: "Rivera Dental",
		CallID:       "CA101",
		Route:        "intake",
		Handoff:      true,
		StartedAt:    time.Now(),
	}

	if err := sender.SendCallSummary(context.Background(), testConfig(), summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(mock.dataWritten), "Subject: Call needs follow-up at Rivera Dental") {
		t.Error("handoff summaries should use the follow-up subject")
	}
}

func TestSendCallSummaryValidation(t *testing.T) {
	sender := newTestSender(&mockSMTPClient{})

	if err := sender.SendCallSummary(context.Background(), SMTPConfig{}, CallSummary{To: "a@b.c"}); err == nil {
		t.Error("expected error for unconfigured smtp")
	}
	if err := sender.SendCallSummary(context.Background(), testConfig(), CallSummary{}); err == nil {
		t.Error("expected error for missing recipient")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{45: "45s", 60: "1m", 135: "2m 15s"}
	for secs, want := range cases {
		if got := formatDuration(secs); got != want {
			t.Errorf("formatDuration(%d) = %q, want %q", secs, got, want)
		}
	}
}
