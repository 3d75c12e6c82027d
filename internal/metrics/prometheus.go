// ABOUTME: Prometheus metrics for both streaming pipelines
// ABOUTME: Counters and gauges fed from engine stats and status events
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AudioLink-Project/audiolink-go/pkg/bridge"
)

// Metrics contains all Prometheus metrics for the audio bridge.
type Metrics struct {
	Sessions   *prometheus.GaugeVec
	Reconnects *prometheus.GaugeVec
	Stalls     *prometheus.GaugeVec
	BytesMoved *prometheus.GaugeVec

	StatusEvents   *prometheus.CounterVec
	TerminalErrors *prometheus.CounterVec
	Connected      *prometheus.GaugeVec
}

// New creates and registers all bridge metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Sessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audiolink_sessions_total",
			Help: "Connection attempts made since the engine was created",
		}, []string{"pipeline"}),
		Reconnects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audiolink_reconnects_total",
			Help: "Reconnection cycles entered since the engine was created",
		}, []string{"pipeline"}),
		Stalls: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audiolink_stall_streaks_total",
			Help: "Stall streaks observed on a live connection",
		}, []string{"pipeline"}),
		BytesMoved: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audiolink_pcm_bytes_total",
			Help: "PCM payload bytes moved through the pipeline",
		}, []string{"pipeline"}),
		StatusEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiolink_status_events_total",
			Help: "Status events emitted, by pipeline and state",
		}, []string{"pipeline", "state"}),
		TerminalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiolink_terminal_errors_total",
			Help: "Terminal engine errors requiring an explicit restart",
		}, []string{"pipeline"}),
		Connected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audiolink_connected",
			Help: "1 while the pipeline is in the connected state",
		}, []string{"pipeline"}),
	}
}

// ObserveStatus records one engine status event.
func (m *Metrics) ObserveStatus(s bridge.Status) {
	m.StatusEvents.WithLabelValues(s.Pipeline, string(s.State)).Inc()

	switch s.State {
	case bridge.StateConnected:
		m.Connected.WithLabelValues(s.Pipeline).Set(1)
	case bridge.StateError:
		m.TerminalErrors.WithLabelValues(s.Pipeline).Inc()
		m.Connected.WithLabelValues(s.Pipeline).Set(0)
	default:
		m.Connected.WithLabelValues(s.Pipeline).Set(0)
	}
}

// ObserveStats mirrors an engine's counter snapshot into the gauges.
func (m *Metrics) ObserveStats(pipeline string, stats bridge.Stats) {
	m.Sessions.WithLabelValues(pipeline).Set(float64(stats.Sessions))
	m.Reconnects.WithLabelValues(pipeline).Set(float64(stats.Reconnects))
	m.Stalls.WithLabelValues(pipeline).Set(float64(stats.Stalls))
	m.BytesMoved.WithLabelValues(pipeline).Set(float64(stats.BytesMoved))
}
