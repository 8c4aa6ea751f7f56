package gateway

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of an invocation, as reported in the invocations metric.
const (
	outcomeSuccess   = "success"
	outcomeTransport = "transport"
	outcomeStatus    = "status"
	outcomeDecode    = "decode"
	outcomeCanceled  = "canceled"
)

type clientMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	invocations *prometheus.CounterVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "societyhub_gateway_requests_total",
			Help: "Tracks the number of HTTP requests sent to the gateway.",
		}, []string{"code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "societyhub_gateway_request_duration_seconds",
			Help: "Tracks the latencies of HTTP requests sent to the gateway.",
			// Stored procedures are slow: up to 20.48s, past the default call timeout.
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "societyhub_gateway_requests_in_flight",
			Help: "Tracks the number of HTTP requests to the gateway waiting for an answer.",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "societyhub_gateway_invocations_total",
			Help: "Tracks stored procedure invocations by procedure and outcome.",
		}, []string{"object", "outcome"}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.inFlight, err = register(reg, m.inFlight); err != nil {
		return nil, err
	}
	if m.invocations, err = register(reg, m.invocations); err != nil {
		return nil, err
	}

	return m, nil
}

// register registers c, or returns the identical collector already registered so that
// several clients can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

func (m *clientMetrics) instrument(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.inFlight,
		promhttp.InstrumentRoundTripperCounter(m.requests,
			promhttp.InstrumentRoundTripperDuration(m.duration, next),
		),
	)
}

func (m *clientMetrics) observe(object, outcome string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(object, outcome).Inc()
}
