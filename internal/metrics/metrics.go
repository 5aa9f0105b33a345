// Package metrics exposes training progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
)

// Recorder owns a private registry so several runs in one process do not
// collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	updates  prometheus.Counter
	syncs    prometheus.Counter
	rejected prometheus.Counter
	loss     *prometheus.GaugeVec
	duration prometheus.Histogram
}

// New creates a recorder with all training metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aht_updates_total",
			Help: "Optimizer updates applied to the agent",
		}),
		syncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aht_target_syncs_total",
			Help: "Target network synchronisations",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aht_checkpoints_rejected_total",
			Help: "Checkpoints vetoed by the gate",
		}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aht_loss",
			Help: "Loss terms of the most recent update",
		}, []string{"term"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aht_train_step_seconds",
			Help:    "Wall time of one training update",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	r.registry.MustRegister(r.updates, r.syncs, r.rejected, r.loss, r.duration)
	return r
}

// Observe records one training update.
func (r *Recorder) Observe(l agent.Losses, elapsed time.Duration) {
	r.updates.Inc()
	if l.Synced {
		r.syncs.Inc()
	}
	r.loss.WithLabelValues(TermImitation).Set(l.Imitation)
	r.loss.WithLabelValues(TermTD).Set(l.TD)
	r.loss.WithLabelValues(TermConservative).Set(l.Conservative)
	r.loss.WithLabelValues(TermTotal).Set(l.Total)
	r.duration.Observe(elapsed.Seconds())
}

// Rejected counts a vetoed checkpoint.
func (r *Recorder) Rejected() { r.rejected.Inc() }

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
