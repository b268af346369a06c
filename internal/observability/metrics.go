// Package observability exposes local prometheus metrics for the voice core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vozcasa_sessions_total",
		Help: "Total number of voice sessions started",
	})

	sessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vozcasa_session_active",
		Help: "Whether a voice session is currently connected (0 or 1)",
	})

	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vozcasa_capture_frames_sent_total",
		Help: "Microphone frames forwarded to the remote peer",
	})

	audioScheduledSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vozcasa_playback_scheduled_seconds_total",
		Help: "Seconds of model audio scheduled for playback",
	})

	decodeDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vozcasa_playback_decode_drops_total",
		Help: "Inbound audio payloads dropped because they failed to decode",
	})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vozcasa_tool_calls_total",
		Help: "Tool calls dispatched, by function and result status",
	}, []string{"function", "status"})

	sessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vozcasa_session_errors_total",
		Help: "Session lifecycle errors by kind",
	}, []string{"kind"})
)

// RecordSessionStart marks a session as connected.
func RecordSessionStart() {
	sessionsTotal.Inc()
	sessionActive.Set(1)
}

// RecordSessionEnd marks the session as released.
func RecordSessionEnd() {
	sessionActive.Set(0)
}

// RecordFrameSent counts one outbound microphone frame.
func RecordFrameSent() {
	framesSent.Inc()
}

// RecordAudioScheduled counts seconds of inbound audio handed to the scheduler.
func RecordAudioScheduled(seconds float64) {
	audioScheduledSeconds.Add(seconds)
}

// RecordDecodeDrop counts a malformed inbound audio payload.
func RecordDecodeDrop() {
	decodeDrops.Inc()
}

// RecordToolCall counts one dispatched tool call.
func RecordToolCall(function, status string) {
	toolCalls.WithLabelValues(function, status).Inc()
}

// RecordSessionError counts a lifecycle error ("setup", "handshake" or
// "transport").
func RecordSessionError(kind string) {
	sessionErrors.WithLabelValues(kind).Inc()
}
