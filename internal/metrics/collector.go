// Package metrics provides Prometheus metrics for the swim OCR pipeline.
//
// All pipeline metrics are aggregate; a run processes a handful of segments
// so there is no per-segment label cardinality concern beyond the step name.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Step labels for the step-duration histogram.
const (
	StepSplit   = "split"
	StepFetch   = "fetch"
	StepExtract = "extract"
)

var (
	pipelineInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swim_ocr_pipeline_info",
			Help: "Information about the pipeline process (value always 1)",
		},
		[]string{"version", "backend_url"},
	)

	runsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_runs_started_total",
			Help: "Pipeline runs started",
		},
	)

	runsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_runs_completed_total",
			Help: "Pipeline runs completed (including runs with recovered segment failures)",
		},
	)

	runsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_runs_failed_total",
			Help: "Pipeline runs aborted by a terminal split failure",
		},
	)

	segmentsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_segments_fetched_total",
			Help: "Segment images fetched successfully",
		},
	)

	segmentFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_segment_fetch_retries_total",
			Help: "Segment fetches retried after a first failure",
		},
	)

	segmentsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_segments_failed_total",
			Help: "Segments skipped after fetch failed twice",
		},
	)

	extractionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_extractions_total",
			Help: "Extraction calls that returned lap entries",
		},
	)

	extractionFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_extraction_fallbacks_total",
			Help: "Extraction failures substituted with a sentinel record",
		},
	)

	lapRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_ocr_lap_records_total",
			Help: "Lap records emitted across all runs (sentinels included)",
		},
	)

	lastRunLaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swim_ocr_last_run_laps",
			Help: "Lap records produced by the most recent completed run",
		},
	)

	stepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swim_ocr_step_duration_seconds",
			Help:    "Duration of one pipeline step",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"step"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swim_ocr_run_duration_seconds",
			Help:    "End-to-end duration of a pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Collector updates the pipeline metrics and keeps a few process-local
// counters for the exit summary.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64
	lapRecords    int64
}

// CollectorConfig identifies the process on the info metric.
type CollectorConfig struct {
	Version    string
	BackendURL string
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	registry.MustRegister(
		pipelineInfo,
		runsStartedTotal,
		runsCompletedTotal,
		runsFailedTotal,
		segmentsFetchedTotal,
		segmentFetchRetriesTotal,
		segmentsFailedTotal,
		extractionsTotal,
		extractionFallbacksTotal,
		lapRecordsTotal,
		lastRunLaps,
		stepDurationSeconds,
		runDurationSeconds,
	)

	pipelineInfo.WithLabelValues(cfg.Version, cfg.BackendURL).Set(1)

	return &Collector{}
}

// RunStarted records the start of a pipeline run.
func (c *Collector) RunStarted() {
	runsStartedTotal.Inc()
	c.mu.Lock()
	c.runsStarted++
	c.mu.Unlock()
}

// RunCompleted records a finished run and its outcome sizes.
func (c *Collector) RunCompleted(laps int, duration time.Duration) {
	runsCompletedTotal.Inc()
	lastRunLaps.Set(float64(laps))
	runDurationSeconds.Observe(duration.Seconds())
	c.mu.Lock()
	c.runsCompleted++
	c.mu.Unlock()
}

// RunFailed records a run aborted by a terminal split failure.
func (c *Collector) RunFailed() {
	runsFailedTotal.Inc()
	c.mu.Lock()
	c.runsFailed++
	c.mu.Unlock()
}

// SegmentFetched records one successful segment image fetch.
func (c *Collector) SegmentFetched() { segmentsFetchedTotal.Inc() }

// SegmentFetchRetried records a fetch retry after a first failure.
func (c *Collector) SegmentFetchRetried() { segmentFetchRetriesTotal.Inc() }

// SegmentFailed records a segment skipped after both fetch attempts failed.
func (c *Collector) SegmentFailed() { segmentsFailedTotal.Inc() }

// ExtractionSucceeded records a successful extraction call.
func (c *Collector) ExtractionSucceeded() { extractionsTotal.Inc() }

// ExtractionFallback records a sentinel substitution.
func (c *Collector) ExtractionFallback() { extractionFallbacksTotal.Inc() }

// LapRecorded records emitted lap records.
func (c *Collector) LapRecorded(n int) {
	lapRecordsTotal.Add(float64(n))
	c.mu.Lock()
	c.lapRecords += int64(n)
	c.mu.Unlock()
}

// ObserveStep records the duration of one pipeline step.
func (c *Collector) ObserveStep(step string, d time.Duration) {
	stepDurationSeconds.WithLabelValues(step).Observe(d.Seconds())
}

// TotalLapRecords returns the process-lifetime lap record count.
func (c *Collector) TotalLapRecords() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lapRecords
}
