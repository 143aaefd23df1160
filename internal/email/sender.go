// Package email delivers post-call summary notifications over SMTP.
// Summaries reach this package already redacted; nothing here masks or
// unmasks caller data.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds the SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname
	Port     string // SMTP port (25, 587, 465)
	From     string // From email address
	Username string // SMTP auth username
	Password string // SMTP auth password
	TLS      string // "none", "starttls", "tls"
}

// Valid returns true if the minimum required fields are set.
func (c SMTPConfig) Valid() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// CallSummary describes a completed call for the notification email.
// All free-text fields must already be redacted by the caller.
type CallSummary struct {
	To           string // recipient email address
	BusinessName string
	CallID       string
	Route        string // route the call took: line, voicemail, intake
	Handoff      bool
	StartedAt    time.Time
	DurationSecs int
	Fields       map[string]string // captured intake fields, masked
	Transcript   string            // masked conversation transcript
}

// Sender sends call summary emails via SMTP.
type Sender struct {
	logger *slog.Logger
	// dialFunc allows injecting a custom dialer for testing.
	dialFunc func(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error)
}

// smtpClient abstracts the methods used from *smtp.Client for testing.
type smtpClient interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// NewSender creates a new email Sender.
func NewSender(logger *slog.Logger) *Sender {
	return &Sender{
		logger:   logger.With("component", "email"),
		dialFunc: defaultDial,
	}
}

// SendCallSummary sends the post-call notification email.
func (s *Sender) SendCallSummary(ctx context.Context, cfg SMTPConfig, summary CallSummary) error {
	if !cfg.Valid() {
		return fmt.Errorf("smtp not configured")
	}
	if summary.To == "" {
		return fmt.Errorf("no recipient email address")
	}

	msg := buildMessage(cfg, summary)

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	client, err := s.dialFunc(addr, tlsConfig, cfg.TLS)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("smtp hello: %w", err)
	}

	// STARTTLS upgrade if requested and supported.
	if strings.EqualFold(cfg.TLS, "starttls") {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(summary.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.logger.Warn("smtp quit error (non-fatal)", "error", err)
	}

	s.logger.Info("call summary email sent",
		"to", summary.To,
		"call_id", summary.CallID,
		"route", summary.Route,
		"handoff", summary.Handoff,
	)

	return nil
}

// defaultDial connects to the SMTP server using either plain TCP or implicit TLS.
func defaultDial(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error) {
	if strings.EqualFold(tlsMode, "tls") {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, tlsConfig.ServerName)
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	return smtp.NewClient(conn, host)
}

// buildMessage constructs the plain-text email message bytes.
func buildMessage(cfg SMTPConfig, summary CallSummary) []byte {
	var buf bytes.Buffer

	subject := fmt.Sprintf("Call summary for %s", summary.BusinessName)
	if summary.Handoff {
		subject = fmt.Sprintf("Call needs follow-up at %s", summary.BusinessName)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", summary.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&buf, "\r\n")

	fmt.Fprintf(&buf, "A call was handled by the assistant.\r\n\r\n")
	fmt.Fprintf(&buf, "Call ID: %s\r\n", summary.CallID)
	fmt.Fprintf(&buf, "Route: %s\r\n", summary.Route)
	fmt.Fprintf(&buf, "Date: %s\r\n", summary.StartedAt.Format("Mon, 02 Jan 2006 3:04 PM"))
	fmt.Fprintf(&buf, "Duration: %s\r\n", formatDuration(summary.DurationSecs))
	if summary.Handoff {
		fmt.Fprintf(&buf, "The caller asked to speak with a person; please follow up.\r\n")
	}

	if len(summary.Fields) > 0 {
		fmt.Fprintf(&buf, "\r\nDetails captured:\r\n")
		for _, name := range []string{"name", "callback_number", "email", "preferred_time", "note"} {
			if v := summary.Fields[name]; v != "" {
				fmt.Fprintf(&buf, "  %s: %s\r\n", strings.ReplaceAll(name, "_", " "), v)
			}
		}
	}

	if summary.Transcript != "" {
		fmt.Fprintf(&buf, "\r\nTranscript:\r\n%s\r\n", summary.Transcript)
	}

	return buf.Bytes()
}

// formatDuration converts seconds into a human-readable string like "2m 15s".
func formatDuration(secs int) string {
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	m := secs / 60
	s := secs % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
