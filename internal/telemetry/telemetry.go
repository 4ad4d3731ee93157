// Package telemetry exposes Prometheus metrics for pipeline runs.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can build as many as they
// like without colliding on the default one.
type Recorder struct {
	reg *prometheus.Registry

	runs      *prometheus.CounterVec
	rows      *prometheus.CounterVec
	repairs   *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	quality   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adperf", Name: "pipeline_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adperf", Name: "rows_total",
			Help: "Rows seen by stage (input, output, dropped).",
		}, []string{"stage"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adperf", Name: "cleaning_repairs_total",
			Help: "Cell repairs by cleaning policy.",
		}, []string{"policy"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adperf", Name: "anomalies_flagged_total",
			Help: "Anomaly flags by metric.",
		}, []string{"metric"}),
		quality: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adperf", Name: "quality_issues_total",
			Help: "Quality check failures by check.",
		}, []string{"check"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adperf", Name: "stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
	}
	r.reg.MustRegister(
		r.runs, r.rows, r.repairs, r.anomalies, r.quality, r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Run(outcome string) { r.runs.WithLabelValues(outcome).Inc() }

func (r *Recorder) Rows(stage string, n int) { r.rows.WithLabelValues(stage).Add(float64(n)) }

func (r *Recorder) Repairs(policy string, n int) {
	if n > 0 {
		r.repairs.WithLabelValues(policy).Add(float64(n))
	}
}

func (r *Recorder) Anomaly(metric string) { r.anomalies.WithLabelValues(metric).Inc() }

func (r *Recorder) QualityIssue(check string, n int) {
	if n > 0 {
		r.quality.WithLabelValues(check).Add(float64(n))
	}
}

// Stage starts a timer; call the returned func when the stage ends.
func (r *Recorder) Stage(name string) func() {
	start := time.Now()
	return func() { r.duration.WithLabelValues(name).Observe(time.Since(start).Seconds()) }
}
