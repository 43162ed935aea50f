package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_sessions_total",
		Help: "Total number of capture sessions by terminal outcome",
	}, []string{"outcome"}) // outcome: "final" or "error"

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_capture_session_duration_seconds",
		Help:    "Duration of capture sessions in seconds",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
	})

	framesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_frames_total",
		Help: "Total audio frames processed by the VAD gate",
	}, []string{"voice"}) // voice: "speech" or "silence"

	transcriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_transcripts_total",
		Help: "Total transcript events observed",
	}, []string{"kind"}) // kind: "partial" or "final"

	audioBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_capture_audio_bytes_total",
		Help: "Total audio bytes sent to the backend",
	})

	backendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_backend_errors_total",
		Help: "Total backend errors by taxonomy type",
	}, []string{"type"})
)

// SessionMetrics tracks metrics for a single capture session.
type SessionMetrics struct {
	startTime time.Time
}

// NewSessionMetrics creates a metrics tracker for a session.
func NewSessionMetrics() *SessionMetrics {
	return &SessionMetrics{startTime: time.Now()}
}

// RecordEnd records the session's terminal outcome and duration.
func (m *SessionMetrics) RecordEnd(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordFrame records one processed frame and its VAD decision.
func (m *SessionMetrics) RecordFrame(isVoice bool) {
	if isVoice {
		framesCaptured.WithLabelValues("speech").Inc()
	} else {
		framesCaptured.WithLabelValues("silence").Inc()
	}
}

// RecordTranscript records an observed transcript event.
func (m *SessionMetrics) RecordTranscript(kind string) {
	transcriptsTotal.WithLabelValues(kind).Inc()
}

// RecordAudioBytes records audio bytes sent to the backend.
func (m *SessionMetrics) RecordAudioBytes(n int) {
	audioBytesSent.Add(float64(n))
}

// RecordBackendError records a backend error by taxonomy type.
func (m *SessionMetrics) RecordBackendError(errType string) {
	backendErrors.WithLabelValues(errType).Inc()
}

// ServeMetrics starts a Prometheus metrics listener on addr in a background
// goroutine. Intended for long-lived deployments; the default configuration
// leaves it disabled since the process lives for one session.
func ServeMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info().Str("addr", addr).Msg("Prometheus metrics listener started")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn().Err(err).Msg("metrics listener stopped")
		}
	}()
}
