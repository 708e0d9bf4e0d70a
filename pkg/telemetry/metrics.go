// Package telemetry exposes editing activity as Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/track"
	"github.com/aretw0/marginalia/pkg/transform"
)

const metricsNamespace = "marginalia"

// Metrics holds the collectors of one process or session.
type Metrics struct {
	TransactionsTotal *prometheus.CounterVec
	FilteredTotal     prometheus.Counter
	TrackedChanges    *prometheus.GaugeVec
	GenerationsTotal  *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	StaleResultsTotal *prometheus.CounterVec
	SnapshotsTotal    *prometheus.CounterVec
	AutosavesTotal    *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests and multiple sessions from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "editor",
				Name:      "transactions_total",
				Help:      "Applied transactions by provenance",
			},
			[]string{"provenance"},
		),
		FilteredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "editor",
				Name:      "filtered_transactions_total",
				Help:      "Transactions vetoed by a filter plugin",
			},
		),
		TrackedChanges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "track",
				Name:      "pending_changes",
				Help:      "Tracked changes awaiting review by kind",
			},
			[]string{"kind"},
		),
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "assist",
				Name:      "generations_total",
				Help:      "Generation requests by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		GenerationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "assist",
				Name:      "generation_seconds",
				Help:      "Time from dispatch to result in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		StaleResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "assist",
				Name:      "stale_results_total",
				Help:      "Results dropped because the document moved on",
			},
			[]string{"kind"},
		),
		SnapshotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "snapshot",
				Name:      "taken_total",
				Help:      "Snapshots stored by trigger",
			},
			[]string{"trigger"},
		),
		AutosavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "session",
				Name:      "saves_total",
				Help:      "Document saves by outcome",
			},
			[]string{"status"},
		),
	}
}

// ObserveGeneration records a finished asynchronous operation. Its
// signature matches assist.NewTracker.
func (m *Metrics) ObserveGeneration(kind string, status assist.Status, elapsed time.Duration) {
	m.GenerationsTotal.WithLabelValues(kind, string(status)).Inc()
	m.GenerationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	if status == assist.StatusDropped {
		m.StaleResultsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveSnapshot counts a stored snapshot. Its signature matches
// snapshot.OnTaken.
func (m *Metrics) ObserveSnapshot(trigger core.Trigger) {
	m.SnapshotsTotal.WithLabelValues(string(trigger)).Inc()
}

// ObserveDispatch counts a vetoed transaction when applied is false.
func (m *Metrics) ObserveDispatch(applied bool) {
	if !applied {
		m.FilteredTotal.Inc()
	}
}

// ObserveSave records the outcome of a save.
func (m *Metrics) ObserveSave(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.AutosavesTotal.WithLabelValues(status).Inc()
}

// Plugin returns an editor observer feeding the transaction and tracked
// change metrics.
func (m *Metrics) Plugin() editor.Plugin {
	return &observer{m: m}
}

type observer struct {
	m *Metrics
}

func (o *observer) Name() string { return "telemetry" }

func (o *observer) Applied(tr *transform.Transaction, oldState, newState editor.State) {
	o.m.TransactionsTotal.WithLabelValues(tr.Provenance().String()).Inc()
	if !tr.DocChanged() {
		return
	}
	stats := track.Summarize(newState.Doc)
	o.m.TrackedChanges.WithLabelValues("insertion").Set(float64(stats.Insertions))
	o.m.TrackedChanges.WithLabelValues("deletion").Set(float64(stats.Deletions))
}

var _ editor.Observer = (*observer)(nil)
