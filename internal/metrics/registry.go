package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ubuntu/societyhub/internal/dashboard"
)

// NewRegistry returns a registry with the Go runtime, process and build collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	return reg
}

// LoadRecorder tracks dashboard loads.
type LoadRecorder struct {
	loads    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewLoadRecorder returns a LoadRecorder registered on reg.
func NewLoadRecorder(reg prometheus.Registerer) (*LoadRecorder, error) {
	r := &LoadRecorder{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "societyhub_dashboard_loads_total",
			Help: "Tracks dashboard loads by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "societyhub_dashboard_section_failures_total",
			Help: "Tracks dashboard sections which failed to load.",
		}, []string{"section"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "societyhub_dashboard_load_duration_seconds",
			Help:    "Tracks the time taken to load a dashboard.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{r.loads, r.failures, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records the outcome of a dashboard load which took elapsed.
func (r *LoadRecorder) Observe(d dashboard.Dashboard, err error, elapsed time.Duration) {
	r.duration.Observe(elapsed.Seconds())

	switch {
	case err != nil:
		r.loads.WithLabelValues("error").Inc()
		return
	case d.Failed() != nil:
		r.loads.WithLabelValues("partial").Inc()
	default:
		r.loads.WithLabelValues("success").Inc()
	}

	for section, failed := range map[string]bool{
		"detail":        d.Detail.Failed(),
		"visitors":      d.Visitors.Failed(),
		"tickets":       d.Tickets.Failed(),
		"announcements": d.Announcements.Failed(),
	} {
		if failed {
			r.failures.WithLabelValues(section).Inc()
		}
	}
}
