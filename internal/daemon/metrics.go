package daemon

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the counters/gauges the daemon's /metrics endpoint exposes
// via promhttp.Handler, wired the way cmd/aios-daemon wires
// client_golang/prometheus/promhttp.
type Metrics struct {
	EventsInFlight  prometheus.Gauge
	OrganizeSuccess prometheus.Counter
	OrganizeErrors  prometheus.Counter
	WatchErrors     prometheus.Counter
}

// NewMetrics registers the daemon's metrics against reg. Passing a nil
// registerer skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "organizer_daemon_events_in_flight",
			Help: "Number of watcher events currently being processed by the pipeline.",
		}),
		OrganizeSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "organizer_daemon_organize_success_total",
			Help: "Total files successfully organized by the daemon.",
		}),
		OrganizeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "organizer_daemon_organize_errors_total",
			Help: "Total pipeline failures encountered by the daemon.",
		}),
		WatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "organizer_daemon_watch_errors_total",
			Help: "Total per-template watcher subscription failures.",
		}),
	}
	if reg != nil {
		m.EventsInFlight = registerGauge(reg, m.EventsInFlight)
		m.OrganizeSuccess = registerCounter(reg, m.OrganizeSuccess)
		m.OrganizeErrors = registerCounter(reg, m.OrganizeErrors)
		m.WatchErrors = registerCounter(reg, m.WatchErrors)
	}
	return m
}

// registerGauge/registerCounter reuse the already-registered collector on a
// duplicate-registration error, so constructing a second Coordinator against
// the same Registerer (as in repeated test runs) observes the same series
// instead of erroring.
func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) prometheus.Gauge {
	if err := reg.Register(g); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(prometheus.Gauge)
		}
	}
	return g
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(prometheus.Counter)
		}
	}
	return c
}
