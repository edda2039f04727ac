// Package metrics registers the realm_ Prometheus gauges the core cares
// about: tick duration, queue depth, and validation flag rate. The core
// only registers and updates them; serving /metrics over HTTP is left to
// cmd/realmd, grounded on the dittofs adapter metrics pattern (registerer
// injected, nil-receiver methods are no-ops).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the gauges/histograms the GameLoop and Router update.
type Metrics struct {
	TickDuration   prometheus.Histogram
	TickPanics     prometheus.Counter
	InQueueDepth   prometheus.Gauge
	FlagsTotal     *prometheus.CounterVec
	OffersActive   prometheus.Gauge
	SkillActions   *prometheus.CounterVec
	ConnectedCount prometheus.Gauge
}

// New creates realm_ metrics and registers them against reg. cmd/realmd
// passes its own prometheus.NewRegistry(), which it also serves on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "realm_tick_duration_seconds",
			Help:    "Wall time spent running one simulation tick.",
			Buckets: prometheus.DefBuckets,
		}),
		TickPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realm_tick_panics_total",
			Help: "Panics recovered from inside a simulation tick.",
		}),
		InQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realm_inbound_queue_depth",
			Help: "Packets currently buffered across all session inbound queues.",
		}),
		FlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realm_validation_flags_total",
			Help: "Validation rejections by error kind.",
		}, []string{"kind"}),
		OffersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realm_ge_offers_active",
			Help: "Currently active exchange offers across all item books.",
		}),
		SkillActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realm_skill_actions_total",
			Help: "Resolved skill actions by skill and outcome.",
		}, []string{"skill", "success"}),
		ConnectedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realm_connected_characters",
			Help: "Characters currently bound to an active session.",
		}),
	}
	reg.MustRegister(
		m.TickDuration, m.TickPanics, m.InQueueDepth, m.FlagsTotal,
		m.OffersActive, m.SkillActions, m.ConnectedCount,
	)
	return m
}

func (m *Metrics) RecordTick(seconds float64) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(seconds)
}

func (m *Metrics) RecordTickPanic() {
	if m == nil {
		return
	}
	m.TickPanics.Inc()
}

func (m *Metrics) SetInQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.InQueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordFlag(kind string) {
	if m == nil {
		return
	}
	m.FlagsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetOffersActive(n int) {
	if m == nil {
		return
	}
	m.OffersActive.Set(float64(n))
}

func (m *Metrics) RecordSkillAction(skill string, success bool) {
	if m == nil {
		return
	}
	status := "false"
	if success {
		status = "true"
	}
	m.SkillActions.WithLabelValues(skill, status).Inc()
}

func (m *Metrics) SetConnectedCount(n int) {
	if m == nil {
		return
	}
	m.ConnectedCount.Set(float64(n))
}
