// Package metrics provides Prometheus metrics for the digit permuter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a run.
type Metrics struct {
	Registry *prometheus.Registry

	// Batch metrics
	BatchesProcessed prometheus.Counter
	BatchDuration    prometheus.Histogram
	BatchVariants    prometheus.Histogram

	// Line metrics
	LinesProcessed  prometheus.Counter
	VariantsWritten prometheus.Counter
	ExpansionErrors prometheus.Counter
	BytesWritten    prometheus.Gauge

	// Pipeline metrics
	WorkerQueueDepth prometheus.Gauge
	SequencerPending prometheus.Gauge
	InFlightBatches  prometheus.Gauge

	// Error metrics
	IOErrors *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Address  string `yaml:"address"`  // HTTP listen address, e.g. ":9090"; empty disables the server
	Textfile string `yaml:"textfile"` // path for a node_exporter textfile dump at exit
}

// Enabled reports whether any metrics output is configured.
func (c Config) Enabled() bool {
	return c.Address != "" || c.Textfile != ""
}

var defaultMetrics *Metrics

// Init creates a fresh registry with all metrics and makes it the global
// instance returned by Get.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "permute_digit"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		BatchesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_processed_total",
				Help:      "Total number of batches written",
			},
		),
		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_expand_duration_seconds",
				Help:      "Time to expand every line of a batch",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),
		BatchVariants: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_variants",
				Help:      "Number of variants produced per batch",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 10), // 100 to ~26M
			},
		),
		LinesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_processed_total",
				Help:      "Total number of input lines expanded",
			},
		),
		VariantsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "variants_written_total",
				Help:      "Total number of variants written",
			},
		),
		ExpansionErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expansion_errors_total",
				Help:      "Total number of input lines skipped because expansion failed",
			},
		),
		BytesWritten: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "output_bytes",
				Help:      "Bytes written to the output so far",
			},
		),
		WorkerQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_queue_depth",
				Help:      "Current number of batches waiting for a worker",
			},
		),
		SequencerPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sequencer_pending",
				Help:      "Number of finished batches waiting for an earlier batch",
			},
		),
		InFlightBatches: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_batches",
				Help:      "Number of batches read but not yet written",
			},
		),
		IOErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "io_errors_total",
				Help:      "Total number of fatal I/O errors",
			},
			[]string{"direction"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// Reset drops the global instance so later runs record nothing.
func Reset() {
	defaultMetrics = nil
}

// Handler returns the HTTP handler serving /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves Handler on address. Blocks until the server exits.
func (m *Metrics) StartServer(address string) error {
	return http.ListenAndServe(address, m.Handler())
}

// WriteTextfile dumps the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// ObserveBatch records one written batch.
func (m *Metrics) ObserveBatch(lines, variants, expansionErrors int, seconds float64) {
	m.BatchesProcessed.Inc()
	m.LinesProcessed.Add(float64(lines))
	m.VariantsWritten.Add(float64(variants))
	m.ExpansionErrors.Add(float64(expansionErrors))
	m.BatchVariants.Observe(float64(variants))
	m.BatchDuration.Observe(seconds)
}

// SetBytesWritten sets the output size gauge.
func (m *Metrics) SetBytesWritten(n int64) {
	m.BytesWritten.Set(float64(n))
}

// SetWorkerQueueDepth sets the current worker queue depth.
func (m *Metrics) SetWorkerQueueDepth(depth int) {
	m.WorkerQueueDepth.Set(float64(depth))
}

// SetSequencerPending sets the number of pending sequencer writes.
func (m *Metrics) SetSequencerPending(pending int) {
	m.SequencerPending.Set(float64(pending))
}

// SetInFlightBatches sets the number of in-flight batches.
func (m *Metrics) SetInFlightBatches(count int) {
	m.InFlightBatches.Set(float64(count))
}

// IncIOErrors increments the I/O error counter; direction is "input" or "output".
func (m *Metrics) IncIOErrors(direction string) {
	m.IOErrors.WithLabelValues(direction).Inc()
}
