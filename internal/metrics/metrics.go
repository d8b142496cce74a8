// Package metrics exposes Prometheus instruments for generation outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mindgate"

// Recorder owns the gateway's instruments. A nil *Recorder records nothing.
type Recorder struct {
	generations      *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	polls            *prometheus.CounterVec
}

// New registers all instruments on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations that reached a terminal state, by delivery mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock time from submission to terminal state.",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 420, 600},
		}, []string{"mode", "outcome"}),
		upstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Provider calls by operation and result kind.",
		}, []string{"op", "result"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Task snapshots observed, by status.",
		}, []string{"status"}),
	}
}

// ObserveGeneration records a terminal generation
func (r *Recorder) ObserveGeneration(mode, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(mode, outcome).Inc()
	r.duration.WithLabelValues(mode, outcome).Observe(elapsed.Seconds())
}

// ObserveUpstream records one provider call; result is "ok" or an error kind
func (r *Recorder) ObserveUpstream(op, result string) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(op, result).Inc()
}

// ObservePoll records one snapshot status
func (r *Recorder) ObservePoll(status string) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(status).Inc()
}

// UpstreamCounter returns one upstream series
func (r *Recorder) UpstreamCounter(op, result string) prometheus.Counter {
	return r.upstreamRequests.WithLabelValues(op, result)
}

// GenerationCounter returns one generation series
func (r *Recorder) GenerationCounter(mode, outcome string) prometheus.Counter {
	return r.generations.WithLabelValues(mode, outcome)
}
