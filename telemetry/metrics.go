// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers and OpenTelemetry tracing setup.
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
	StatusPolls          prometheus.Counter
	StatusPollFailures   prometheus.Counter
	PingFailures         prometheus.Counter
	Registrations        prometheus.Counter
	RegistrationFailures prometheus.Counter
	SocketConnects       prometheus.Counter
	ControlMessages      *prometheus.CounterVec
	StreamTransitions    *prometheus.CounterVec

	// Histograms (seconds)
	PollDuration         prometheus.Observer
	RegistrationDuration prometheus.Observer

	// Gauges
	StreamOnlineGauge     prometheus.Gauge
	ChatInputEnabledGauge prometheus.Gauge
	ViewerCountGauge      prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		StatusPolls = promauto.NewCounter(prometheus.CounterOpts{Name: "livewatch_status_polls_total", Help: "Number of stream status fetches issued"})
		StatusPollFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "livewatch_status_poll_failures_total", Help: "Number of stream status fetches that failed"})
		PingFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "livewatch_ping_failures_total", Help: "Number of viewer keep-alive pings that failed"})
		Registrations = promauto.NewCounter(prometheus.CounterOpts{Name: "livewatch_chat_registrations_total", Help: "Number of chat registrations completed"})
		RegistrationFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "livewatch_chat_registration_failures_total", Help: "Number of chat registrations that failed"})
		SocketConnects = promauto.NewCounter(prometheus.CounterOpts{Name: "livewatch_chat_socket_connects_total", Help: "Number of chat sockets opened"})
		ControlMessages = promauto.NewCounterVec(prometheus.CounterOpts{Name: "livewatch_chat_control_messages_total", Help: "Chat control messages received by kind"}, []string{"kind"})
		StreamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "livewatch_stream_transitions_total", Help: "Online/offline transitions applied"}, []string{"to"})
		PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "livewatch_status_poll_duration_seconds", Help: "Stream status fetch duration seconds", Buckets: prometheus.DefBuckets})
		RegistrationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "livewatch_chat_registration_duration_seconds", Help: "Chat registration duration seconds", Buckets: prometheus.DefBuckets})
		StreamOnlineGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "livewatch_stream_online", Help: "Stream online=1 offline=0 as last applied"})
		ChatInputEnabledGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "livewatch_chat_input_enabled", Help: "Chat input enabled=1 disabled=0"})
		ViewerCountGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "livewatch_viewer_count", Help: "Viewer count from the last status poll"})
	})
}

func setBool(g prometheus.Gauge, v bool) {
	if g == nil {
		return
	}
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

// SetStreamOnline records the last applied online state.
func SetStreamOnline(online bool) { setBool(StreamOnlineGauge, online) }

// SetChatInputEnabled records whether chat input is currently allowed.
func SetChatInputEnabled(enabled bool) { setBool(ChatInputEnabledGauge, enabled) }

// SetViewerCount records the viewer count from the latest status.
func SetViewerCount(n int) {
	if ViewerCountGauge != nil {
		ViewerCountGauge.Set(float64(n))
	}
}

// Inc increments c if it has been registered.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncControlMessage counts one control message of kind.
func IncControlMessage(kind string) {
	if ControlMessages != nil {
		ControlMessages.WithLabelValues(kind).Inc()
	}
}

// IncTransition counts one transition to "online" or "offline".
func IncTransition(to string) {
	if StreamTransitions != nil {
		StreamTransitions.WithLabelValues(to).Inc()
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
	if s, ok := ctx.Value(corrKey).(string); ok {
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
