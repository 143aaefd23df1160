package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionCounter returns call session counts grouped by state.
type SessionCounter interface {
	CountByState(ctx context.Context) (map[string]int64, error)
}

// ConsentCounter returns consent decision counts grouped by status.
type ConsentCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// NotificationCounter returns the total notifications dispatched.
type NotificationCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Collector is a prometheus.Collector that gathers call-handling metrics
// at scrape time.
type Collector struct {
	sessions      SessionCounter
	consents      ConsentCounter
	notifications NotificationCounter
	startTime     time.Time

	// Metric descriptors.
	sessionsDesc      *prometheus.Desc
	activeCallsDesc   *prometheus.Desc
	consentsDesc      *prometheus.Desc
	notificationsDesc *prometheus.Desc
	uptimeDesc        *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil
// if unavailable.
func NewCollector(sessions SessionCounter, consents ConsentCounter, notifications NotificationCounter, startTime time.Time) *Collector {
	return &Collector{
		sessions:      sessions,
		consents:      consents,
		notifications: notifications,
		startTime:     startTime,

		sessionsDesc: prometheus.NewDesc(
			"callgreet_call_sessions",
			"Number of call sessions by lifecycle state",
			[]string{"state"}, nil,
		),
		activeCallsDesc: prometheus.NewDesc(
			"callgreet_active_calls",
			"Number of call sessions not yet in a terminal state",
			nil, nil,
		),
		consentsDesc: prometheus.NewDesc(
			"callgreet_consent_decisions_total",
			"Total consent decisions recorded, by status",
			[]string{"status"}, nil,
		),
		notificationsDesc: prometheus.NewDesc(
			"callgreet_notifications_sent_total",
			"Total post-call notifications dispatched",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callgreet_uptime_seconds",
			"Seconds since the process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsDesc
	ch <- c.activeCallsDesc
	ch <- c.consentsDesc
	ch <- c.notificationsDesc
	ch <- c.uptimeDesc
}

// terminalStates mirrors the state machine's terminal set for the
// active-calls gauge.
var terminalStates = map[string]bool{
	"completed": true,
	"opted_out": true,
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.sessions != nil {
		counts, err := c.sessions.CountByState(ctx)
		if err != nil {
			slog.Error("metrics: failed to count sessions by state", "error", err)
		} else {
			var active int64
			for state, n := range counts {
				ch <- prometheus.MustNewConstMetric(
					c.sessionsDesc, prometheus.GaugeValue,
					float64(n), state,
				)
				if !terminalStates[state] {
					active += n
				}
			}
			ch <- prometheus.MustNewConstMetric(
				c.activeCallsDesc, prometheus.GaugeValue,
				float64(active),
			)
		}
	}

	if c.consents != nil {
		counts, err := c.consents.CountByStatus(ctx)
		if err != nil {
			slog.Error("metrics: failed to count consent decisions", "error", err)
		} else {
			for _, status := range []string{"granted", "denied", "timeout"} {
				ch <- prometheus.MustNewConstMetric(
					c.consentsDesc, prometheus.CounterValue,
					float64(counts[status]), status,
				)
			}
		}
	}

	if c.notifications != nil {
		count, err := c.notifications.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count notifications", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.notificationsDesc, prometheus.CounterValue,
				float64(count),
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
