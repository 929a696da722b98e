package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neomorfeo/boxsync/internal/domain"
)

const namespace = "boxsync"

// Recorder exports sync and circuit breaker metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runs           prometheus.Counter
	runDuration    prometheus.Histogram
	runErrors      prometheus.Counter
	lastRun        prometheus.Gauge
	documents      *prometheus.CounterVec
	tenantErrors   *prometheus.CounterVec
	tenantDuration *prometheus.HistogramVec
	breakerChanges *prometheus.CounterVec
	breakerOpen    *prometheus.GaugeVec
}

var _ domain.SyncMetrics = (*Recorder)(nil)

// New registers the boxsync collectors plus the Go and process collectors
// on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Completed sync runs.",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall time of a full sync run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		runErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_run_errors_total",
			Help:      "Error messages reported across all runs.",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_documents_total",
			Help:      "Documents changed by sync, by tenant and operation.",
		}, []string{"tenant", "op"}),
		tenantErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tenant_errors_total",
			Help:      "Error messages reported per tenant.",
		}, []string{"tenant"}),
		tenantDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_tenant_duration_seconds",
			Help:      "Wall time of reconciling one tenant.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tenant"}),
		breakerChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_breaker_transitions_total",
			Help:      "Circuit breaker state changes by tenant and new state.",
		}, []string{"tenant", "state"}),
		breakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_breaker_open",
			Help:      "1 while the tenant's circuit breaker is open.",
		}, []string{"tenant"}),
	}
}

// ObserveTenant implements domain.SyncMetrics.
func (r *Recorder) ObserveTenant(tenant string, result domain.TenantResult, d time.Duration) {
	r.documents.WithLabelValues(tenant, "created").Add(float64(result.Created))
	r.documents.WithLabelValues(tenant, "updated").Add(float64(result.Updated))
	r.documents.WithLabelValues(tenant, "deleted").Add(float64(result.Deleted))
	r.tenantErrors.WithLabelValues(tenant).Add(float64(len(result.Errors)))
	r.tenantDuration.WithLabelValues(tenant).Observe(d.Seconds())
}

// ObserveRun implements domain.SyncMetrics.
func (r *Recorder) ObserveRun(result domain.AggregateResult, d time.Duration) {
	r.runs.Inc()
	r.runErrors.Add(float64(len(result.Errors)))
	r.runDuration.Observe(d.Seconds())
	finished := result.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.lastRun.Set(float64(finished.Unix()))
}

// BreakerStateChanged implements tickettailor.BreakerObserver.
func (r *Recorder) BreakerStateChanged(name, _, to string) {
	r.breakerChanges.WithLabelValues(name, to).Inc()
	open := 0.0
	if to == "open" {
		open = 1
	}
	r.breakerOpen.WithLabelValues(name).Set(open)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
