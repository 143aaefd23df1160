package postcall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/database/models"
	"github.com/callgreet/callgreet/internal/email"
	"github.com/callgreet/callgreet/internal/intake"
)

// Notifier sends one post-call summary. Satisfied by *email.Sender.
type Notifier interface {
	SendCallSummary(ctx context.Context, cfg email.SMTPConfig, summary email.CallSummary) error
}

// Processor runs the post-call pipeline for a terminal call: mark the
// notification, redact, and dispatch the summary. Marking happens before
// sending so a redelivered terminal callback can never double-send; a
// failed send is logged and not retried.
type Processor struct {
	sessions      database.CallSessionRepository
	notifications database.NotificationRepository
	sysConfig     database.SystemConfigRepository
	notifier      Notifier
	smtp          email.SMTPConfig
	businessName  string
	logger        *slog.Logger
}

// NewProcessor creates a post-call processor.
func NewProcessor(sessions database.CallSessionRepository, notifications database.NotificationRepository, sysConfig database.SystemConfigRepository, notifier Notifier, smtp email.SMTPConfig, businessName string, logger *slog.Logger) *Processor {
	return &Processor{
		sessions:      sessions,
		notifications: notifications,
		sysConfig:     sysConfig,
		notifier:      notifier,
		smtp:          smtp,
		businessName:  businessName,
		logger:        logger.With("component", "postcall"),
	}
}

// Process runs the pipeline for one completed call. It is safe to call
// multiple times for the same call; only the first invocation sends.
func (p *Processor) Process(ctx context.Context, callID string) error {
	sess, err := p.sessions.GetByCallID(ctx, callID)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", callID, err)
	}

	recipient, err := p.sysConfig.Get(ctx, database.KeyNotifyRecipient)
	if err != nil {
		return fmt.Errorf("reading notification recipient: %w", err)
	}

	mark := &models.NotificationMark{
		ID:        uuid.NewString(),
		CallID:    callID,
		Recipient: recipient,
		SentAt:    time.Now().UTC(),
	}
	inserted, err := p.notifications.MarkSent(ctx, mark)
	if err != nil {
		return fmt.Errorf("marking notification for %s: %w", callID, err)
	}
	if !inserted {
		p.logger.Debug("notification already dispatched", "call_id", callID)
		return nil
	}

	if recipient == "" {
		p.logger.Warn("no notification recipient configured, skipping summary", "call_id", callID)
		return nil
	}

	summary, err := p.buildSummary(ctx, sess, recipient)
	if err != nil {
		return fmt.Errorf("building summary for %s: %w", callID, err)
	}

	if err := p.notifier.SendCallSummary(ctx, p.smtp, summary); err != nil {
		// The mark already exists; the summary is lost rather than risking
		// a duplicate on redelivery.
		p.logger.Error("call summary send failed", "call_id", callID, "notification_id", mark.ID, "error", err)
		return fmt.Errorf("sending summary for %s: %w", callID, err)
	}

	p.logger.Info("post-call notification dispatched",
		"call_id", callID, "notification_id", mark.ID, "route", sess.RouteTaken)
	return nil
}

// buildSummary assembles the redacted summary for one session.
func (p *Processor) buildSummary(ctx context.Context, sess *models.CallSession, recipient string) (email.CallSummary, error) {
	fields := map[string]string{}
	if sess.CapturedFields != "" && sess.CapturedFields != "{}" {
		if err := json.Unmarshal([]byte(sess.CapturedFields), &fields); err != nil {
			return email.CallSummary{}, fmt.Errorf("decoding captured fields: %w", err)
		}
	}

	transcript, err := p.transcript(ctx, sess.CallID)
	if err != nil {
		// A summary without a transcript is still worth sending.
		p.logger.Warn("transcript unavailable for summary", "call_id", sess.CallID, "error", err)
		transcript = ""
	}

	duration := 0
	if sess.EndedAt != nil {
		duration = int(sess.EndedAt.Sub(sess.StartedAt).Seconds())
	}

	return email.CallSummary{
		To:           recipient,
		BusinessName: p.businessName,
		CallID:       sess.CallID,
		Route:        sess.RouteTaken,
		Handoff:      sess.Handoff,
		StartedAt:    sess.StartedAt,
		DurationSecs: duration,
		Fields:       MaskFields(fields),
		Transcript:   MaskPII(transcript),
	}, nil
}

// transcript renders the stored intake conversation as caller/assistant
// lines. Calls that never reached the assistant have no transcript.
func (p *Processor) transcript(ctx context.Context, callID string) (string, error) {
	raw, err := p.sessions.GetIntakeState(ctx, callID)
	if err != nil {
		return "", err
	}
	st, err := intake.DecodeState(raw)
	if err != nil {
		return "", err
	}
	if len(st.History) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, msg := range st.History {
		speaker := "assistant"
		if msg.Role == "user" {
			speaker = "caller"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, msg.Content)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
