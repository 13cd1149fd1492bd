// Package metrics expone en Prometheus los envíos, las llamadas al API de
// LHDN y las pasadas del planificador.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
)

const namespace = "myinvois"

var _ ports.Metrics = (*Recorder)(nil)

// Recorder implementa ports.Metrics sobre un registro propio.
type Recorder struct {
	registry *prometheus.Registry

	submissions   *prometheus.CounterVec
	transport     *prometheus.CounterVec
	transportTime *prometheus.HistogramVec
	passes        *prometheus.CounterVec
	passRows      *prometheus.CounterVec
	passTime      *prometheus.HistogramVec
	passSkipped   *prometheus.CounterVec
}

// NewRecorder registra todas las series. Incluye métricas de proceso y de Go.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "submissions_total",
			Help: "Envíos terminados por tipo de documento y estado resultante.",
		}, []string{"kind", "status"}),
		transport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transport_calls_total",
			Help: "Llamadas al API por operación y resultado.",
		}, []string{"op", "outcome"}),
		transportTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "transport_call_duration_seconds",
			Help:    "Duración de las llamadas al API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_passes_total",
			Help: "Pasadas completadas del planificador.",
		}, []string{"pass"}),
		passRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_rows_total",
			Help: "Filas procesadas por pasada.",
		}, []string{"pass"}),
		passTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scheduler_pass_duration_seconds",
			Help:    "Duración de cada pasada.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"pass"}),
		passSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_passes_skipped_total",
			Help: "Pasadas omitidas por motivo.",
		}, []string{"pass", "reason"}),
	}
	reg.MustRegister(
		r.submissions, r.transport, r.transportTime,
		r.passes, r.passRows, r.passTime, r.passSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) SubmissionFinished(kind, status string) {
	r.submissions.WithLabelValues(kind, status).Inc()
}

func (r *Recorder) TransportCall(op, outcome string, elapsed time.Duration) {
	r.transport.WithLabelValues(op, outcome).Inc()
	r.transportTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Recorder) PassFinished(pass string, processed int, elapsed time.Duration) {
	r.passes.WithLabelValues(pass).Inc()
	r.passRows.WithLabelValues(pass).Add(float64(processed))
	r.passTime.WithLabelValues(pass).Observe(elapsed.Seconds())
}

func (r *Recorder) PassSkipped(pass, reason string) {
	r.passSkipped.WithLabelValues(pass, reason).Inc()
}

// Registry expone el registro (tests).
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler sirve el formato de exposición de Prometheus.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
