package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes reconciliation metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	passes       *prometheus.CounterVec
	tickErrors   *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	cursorBlock  prometheus.Gauge
	latestEpoch  *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_passes_total",
			Help: "Reconciliation passes by loop and result status.",
		}, []string{"loop", "status"}),
		tickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_tick_errors_total",
			Help: "Scheduled passes that returned an error.",
		}, []string{"loop"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_pass_duration_seconds",
			Help:    "Duration of completed reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"loop"}),
		cursorBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_event_cursor_block",
			Help: "Last block fully processed by the event syncer.",
		}),
		latestEpoch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_reward_latest_epoch",
			Help: "Highest epoch persisted for the operator.",
		}, []string{"operator"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.passes,
		r.tickErrors,
		r.passDuration,
		r.cursorBlock,
		r.latestEpoch,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObservePass(loop, status string, took time.Duration) {
	if r == nil {
		return
	}
	r.passes.WithLabelValues(loop, status).Inc()
	r.passDuration.WithLabelValues(loop).Observe(took.Seconds())
}

func (r *Recorder) IncTickError(loop string) {
	if r == nil {
		return
	}
	r.tickErrors.WithLabelValues(loop).Inc()
}

func (r *Recorder) SetCursorBlock(block uint64) {
	if r == nil {
		return
	}
	r.cursorBlock.Set(float64(block))
}

func (r *Recorder) SetLatestEpoch(operator string, epoch uint64) {
	if r == nil {
		return
	}
	r.latestEpoch.WithLabelValues(operator).Set(float64(epoch))
}
