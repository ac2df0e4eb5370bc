// Package metrics owns the prometheus collectors for the pipeline binaries and the ops API
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline holds the collectors touched by collect, stage and load.
// A nil *Pipeline is valid and records nothing
type Pipeline struct {
	reg *prometheus.Registry

	CollectItems     *prometheus.CounterVec // region
	CollectDrops     *prometheus.CounterVec // reason
	QuotaUnits       *prometheus.CounterVec // region
	QuotaTruncated   prometheus.Gauge
	PageRetries      *prometheus.CounterVec // method
	StageBatches     prometheus.Counter
	StageBytes       prometheus.Counter
	LoadRows         *prometheus.CounterVec // outcome
	LoadBatches      *prometheus.CounterVec // status
	StageDuration    *prometheus.HistogramVec
	HTTPDuration     *prometheus.HistogramVec
	HTTPInFlight     prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New builds a private registry with process and go collectors plus the pipeline set
func New() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := &Pipeline{
		reg: reg,
		CollectItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubesense_collect_items_total",
			Help: "Records emitted by the collector, by region.",
		}, []string{"region"}),
		CollectDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubesense_collect_dropped_total",
			Help: "Candidates dropped by the collector, by reason.",
		}, []string{"reason"}),
		QuotaUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubesense_quota_units_total",
			Help: "Upstream quota units consumed, by region.",
		}, []string{"region"}),
		QuotaTruncated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubesense_quota_truncated",
			Help: "1 when the last run stopped early on the quota budget.",
		}),
		PageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubesense_page_retries_total",
			Help: "Upstream page fetch retries, by method.",
		}, []string{"method"}),
		StageBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubesense_stage_batches_total",
			Help: "Batches published to the blob sink.",
		}),
		StageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubesense_stage_bytes_total",
			Help: "Compressed bytes published to the blob sink.",
		}),
		LoadRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubesense_load_rows_total",
			Help: "Rows handled by the loader, by outcome.",
		}, []string{"outcome"}),
		LoadBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubesense_load_batches_total",
			Help: "Batches handled by the loader, by status.",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tubesense_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"stage"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tubesense_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubesense_api_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubesense_last_run_timestamp_seconds",
			Help: "Unix time the last pipeline run finished.",
		}),
	}
	reg.MustRegister(
		p.CollectItems, p.CollectDrops, p.QuotaUnits, p.QuotaTruncated, p.PageRetries,
		p.StageBatches, p.StageBytes, p.LoadRows, p.LoadBatches, p.StageDuration,
		p.HTTPDuration, p.HTTPInFlight, p.LastRunTimestamp,
	)
	return p
}

// Registry exposes the underlying registry for extra collectors
func (p *Pipeline) Registry() *prometheus.Registry { return p.reg }

// Handler serves the registry in the text exposition format
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector
func (p *Pipeline) WriteTextfile(path string) error {
	if p == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, p.reg)
}

// Observe records how long stage took since start
func (p *Pipeline) Observe(stage string, start time.Time) {
	if p == nil {
		return
	}
	p.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Item counts one collected record
func (p *Pipeline) Item(region string) {
	if p == nil {
		return
	}
	p.CollectItems.WithLabelValues(region).Inc()
}

// Drop counts one dropped candidate
func (p *Pipeline) Drop(reason string) {
	if p == nil {
		return
	}
	p.CollectDrops.WithLabelValues(reason).Inc()
}

// Quota adds consumed units for region
func (p *Pipeline) Quota(region string, units int) {
	if p == nil {
		return
	}
	p.QuotaUnits.WithLabelValues(region).Add(float64(units))
}

// Retry counts one page retry
func (p *Pipeline) Retry(method string) {
	if p == nil {
		return
	}
	p.PageRetries.WithLabelValues(method).Inc()
}

// Truncated sets the truncation gauge
func (p *Pipeline) Truncated(v bool) {
	if p == nil {
		return
	}
	if v {
		p.QuotaTruncated.Set(1)
	} else {
		p.QuotaTruncated.Set(0)
	}
}

// Staged counts one published batch of n compressed bytes
func (p *Pipeline) Staged(n int) {
	if p == nil {
		return
	}
	p.StageBatches.Inc()
	p.StageBytes.Add(float64(n))
}

// Loaded records a finished batch: status plus per-outcome row counts
func (p *Pipeline) Loaded(status string, rows map[string]int) {
	if p == nil {
		return
	}
	p.LoadBatches.WithLabelValues(status).Inc()
	for outcome, n := range rows {
		p.LoadRows.WithLabelValues(outcome).Add(float64(n))
	}
}

// Finished stamps the last-run gauge
func (p *Pipeline) Finished(at time.Time) {
	if p == nil {
		return
	}
	p.LastRunTimestamp.Set(float64(at.Unix()))
}

// Middleware records request duration and in-flight count, keyed by chi route pattern
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	if p == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		p.HTTPInFlight.Inc()
		defer p.HTTPInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		p.HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
