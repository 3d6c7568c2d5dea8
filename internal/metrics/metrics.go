package metrics

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solarmax"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type InverterMetrics struct {
	OpDuration      *prometheus.HistogramVec // labels: op
	OpErrors        *prometheus.CounterVec   // labels: op, kind
	StateChanges    *prometheus.CounterVec   // labels: state
	ConnectionState prometheus.Gauge         // 0 disconnected, 1 connecting, 2 connected
}

func NewInverterMetrics(reg prometheus.Registerer) *InverterMetrics {
	m := &InverterMetrics{
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of inverter operations.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		OpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed inverter operations by error kind.",
		}, []string{"op", "kind"}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_state_changes_total",
			Help:      "Connection state transitions.",
		}, []string{"state"}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 connected).",
		}),
	}
	reg.MustRegister(m.OpDuration, m.OpErrors, m.StateChanges, m.ConnectionState)
	return m
}

// Instrument hooks the collectors into a solarmax client.
func (m *InverterMetrics) Instrument() solarmax.Instrument {
	return solarmax.Instrument{
		RecordTime: func(op string, duration time.Duration) {
			m.OpDuration.WithLabelValues(op).Observe(duration.Seconds())
		},
		RecordError: func(op string, err error) {
			m.OpErrors.WithLabelValues(op, ErrorKind(err)).Inc()
		},
		RecordState: func(state solarmax.State) {
			m.StateChanges.WithLabelValues(state.String()).Inc()
			m.ConnectionState.Set(float64(state))
		},
	}
}

// ErrorKind maps an error to a bounded label value.
func ErrorKind(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, solarmax.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, solarmax.ErrMalformedFrame):
		return "malformed"
	case errors.Is(err, solarmax.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, solarmax.ErrConnectFailed):
		return "connect"
	case errors.Is(err, solarmax.ErrHostUnreachable):
		return "unreachable"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "other"
	}
}
