// Package telemetry provides Prometheus metrics, tracing, log handler setup and
// correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	StockFetches      *prometheus.CounterVec // labels: endpoint, outcome
	ReportsDelivered  *prometheus.CounterVec // labels: kind
	PollAttempts      prometheus.Counter
	CommandsHandled   *prometheus.CounterVec // labels: command, outcome
	MessagesSent      *prometheus.CounterVec // labels: outcome
	SessionsStarted   prometheus.Counter
	SessionsStopped   *prometheus.CounterVec // labels: reason

	// Histograms (seconds)
	FetchDuration prometheus.Observer

	// Gauges
	ActiveSessions prometheus.Gauge
	ChatConnected  prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		StockFetches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "garden_stock_fetches_total", Help: "Stock API reads by endpoint and outcome"}, []string{"endpoint", "outcome"})
		ReportsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{Name: "garden_reports_delivered_total", Help: "Tracking reports delivered by kind"}, []string{"kind"})
		PollAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "garden_poll_attempts_total", Help: "Post-reset poll attempts"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "garden_commands_total", Help: "Chat commands handled by name and outcome"}, []string{"command", "outcome"})
		MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "garden_messages_sent_total", Help: "Outbound chat messages by outcome"}, []string{"outcome"})
		SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "garden_sessions_started_total", Help: "Tracking sessions started"})
		SessionsStopped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "garden_sessions_stopped_total", Help: "Tracking sessions stopped by reason"}, []string{"reason"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "garden_fetch_duration_seconds", Help: "Combined stock+weather fetch duration seconds", Buckets: prometheus.DefBuckets})
		ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{Name: "garden_active_sessions", Help: "Current number of tracking sessions"})
		ChatConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "garden_chat_connected", Help: "Chat connection up=1 down=0"})
	})
}

// ObserveFetch records one endpoint read.
func ObserveFetch(endpoint, outcome string) {
	if StockFetches != nil {
		StockFetches.WithLabelValues(endpoint, outcome).Inc()
	}
}

// ReportDelivered counts a report of the given kind.
func ReportDelivered(kind string) {
	if ReportsDelivered != nil {
		ReportsDelivered.WithLabelValues(kind).Inc()
	}
}

// PollAttempted counts one poll attempt.
func PollAttempted() {
	if PollAttempts != nil {
		PollAttempts.Inc()
	}
}

// CommandHandled counts a dispatched command.
func CommandHandled(name, outcome string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(name, outcome).Inc()
	}
}

// MessageSent counts an outbound chat message.
func MessageSent(outcome string) {
	if MessagesSent != nil {
		MessagesSent.WithLabelValues(outcome).Inc()
	}
}

// SessionStarted increments the started counter and the active gauge.
func SessionStarted() {
	if SessionsStarted != nil {
		SessionsStarted.Inc()
	}
	if ActiveSessions != nil {
		ActiveSessions.Inc()
	}
}

// SessionStopped increments the stopped counter and decrements the active gauge.
func SessionStopped(reason string) {
	if SessionsStopped != nil {
		SessionsStopped.WithLabelValues(reason).Inc()
	}
	if ActiveSessions != nil {
		ActiveSessions.Dec()
	}
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(up bool) {
	if ChatConnected == nil {
		return
	}
	if up {
		ChatConnected.Set(1)
	} else {
		ChatConnected.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
