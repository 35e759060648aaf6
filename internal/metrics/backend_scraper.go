package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// BackendMetrics is a snapshot of the OCR backend's own exporter, used for
// display while a long extraction run is in flight.
type BackendMetrics struct {
	// Process metrics from the backend exporter
	CPURate  float64 // CPU seconds consumed per wall second
	MemBytes int64   // resident memory

	// Request metrics
	ReqRate       float64 // requests/sec since last scrape
	ReqAvgLatency float64 // average request duration in seconds

	// Rolling window over ReqRate samples
	ReqRateP50    float64
	ReqRateMax    float64
	WindowSeconds int

	LastUpdate time.Time
	Healthy    bool
	Error      string
}

// BackendScraper polls the OCR backend's Prometheus endpoint. Reads are
// lock-free via atomic.Value; the rolling window uses a T-Digest rebuilt
// as stale samples age out.
type BackendScraper struct {
	exporterURL string
	interval    time.Duration
	logger      *slog.Logger
	httpClient  *http.Client

	metrics atomic.Value // *BackendMetrics

	// Rate calculation state
	lastCPUSeconds float64
	lastReqCount   float64
	lastReqSum     float64
	lastScrape     time.Time

	// Rolling request-rate window
	mu         sync.Mutex
	digest     *tdigest.TDigest
	samples    []rateSample
	windowSize time.Duration
}

type rateSample struct {
	value float64
	time  time.Time
}

// NewBackendScraper creates a scraper, or nil when exporterURL is empty
// (feature disabled). Nil receivers are safe to call.
func NewBackendScraper(exporterURL string, interval, windowSize time.Duration, logger *slog.Logger) *BackendScraper {
	if exporterURL == "" {
		return nil
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if windowSize < 10*time.Second {
		windowSize = 10 * time.Second
	}

	s := &BackendScraper{
		exporterURL: exporterURL,
		interval:    interval,
		logger:      logger,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		digest:      tdigest.NewWithCompression(100),
		windowSize:  windowSize,
	}
	s.metrics.Store(&BackendMetrics{Healthy: false, Error: "not yet scraped"})
	return s
}

// Run scrapes on the configured interval until ctx is cancelled.
func (s *BackendScraper) Run(ctx context.Context) {
	if s == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scrape()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scrape()
		}
	}
}

// Current returns the latest snapshot with window percentiles filled in,
// or nil when the scraper is disabled.
func (s *BackendScraper) Current() *BackendMetrics {
	if s == nil {
		return nil
	}
	ptr := s.metrics.Load()
	if ptr == nil {
		return nil
	}
	m := *ptr.(*BackendMetrics)

	s.mu.Lock()
	s.pruneWindow(time.Now())
	if len(s.samples) > 0 {
		m.ReqRateP50 = s.digest.Quantile(0.5)
		m.ReqRateMax = s.samples[0].value
		for _, sample := range s.samples {
			if sample.value > m.ReqRateMax {
				m.ReqRateMax = sample.value
			}
		}
	}
	s.mu.Unlock()

	m.WindowSeconds = int(s.windowSize.Seconds())
	return &m
}

func (s *BackendScraper) scrape() {
	now := time.Now()
	next := &BackendMetrics{LastUpdate: now, Healthy: true}

	families, err := s.fetchFamilies()
	if err != nil {
		if prev, ok := s.metrics.Load().(*BackendMetrics); ok {
			*next = *prev
		}
		next.LastUpdate = now
		next.Healthy = false
		next.Error = err.Error()
		s.metrics.Store(next)
		if s.logger != nil {
			s.logger.Debug("backend_scrape_error", "error", err)
		}
		return
	}

	elapsed := now.Sub(s.lastScrape).Seconds()

	if cpu, ok := gaugeOrCounter(families, "process_cpu_seconds_total"); ok {
		if !s.lastScrape.IsZero() && elapsed > 0 && cpu >= s.lastCPUSeconds {
			next.CPURate = (cpu - s.lastCPUSeconds) / elapsed
		}
		s.lastCPUSeconds = cpu
	}

	if mem, ok := gaugeOrCounter(families, "process_resident_memory_bytes"); ok {
		next.MemBytes = int64(mem)
	}

	count, sum := histogramTotals(families, "http_request_duration_seconds")
	if count == 0 {
		// Some backends export a plain counter instead of a histogram.
		count, _ = gaugeOrCounter(families, "http_requests_total")
	}
	if !s.lastScrape.IsZero() && elapsed > 0 && count >= s.lastReqCount {
		next.ReqRate = (count - s.lastReqCount) / elapsed
		if deltaCount := count - s.lastReqCount; deltaCount > 0 && sum >= s.lastReqSum {
			next.ReqAvgLatency = (sum - s.lastReqSum) / deltaCount
		}

		s.mu.Lock()
		s.samples = append(s.samples, rateSample{value: next.ReqRate, time: now})
		s.digest.Add(next.ReqRate, 1)
		s.pruneWindow(now)
		s.mu.Unlock()
	}
	s.lastReqCount = count
	s.lastReqSum = sum
	s.lastScrape = now

	s.metrics.Store(next)
}

// fetchFamilies retrieves and parses the exporter's text format.
func (s *BackendScraper) fetchFamilies() (map[string]*dto.MetricFamily, error) {
	resp, err := s.httpClient.Get(s.exporterURL)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	decoder := expfmt.NewDecoder(resp.Body, expfmt.FmtText)
	families := make(map[string]*dto.MetricFamily)
	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		families[mf.GetName()] = &mf
	}
	return families, nil
}

// pruneWindow drops samples older than the window and rebuilds the digest
// when anything aged out. Caller holds s.mu.
func (s *BackendScraper) pruneWindow(now time.Time) {
	cutoff := now.Add(-s.windowSize)
	keep := s.samples[:0]
	dropped := false
	for _, sample := range s.samples {
		if sample.time.After(cutoff) {
			keep = append(keep, sample)
		} else {
			dropped = true
		}
	}
	s.samples = keep

	if dropped {
		s.digest = tdigest.NewWithCompression(100)
		for _, sample := range s.samples {
			s.digest.Add(sample.value, 1)
		}
	}
}

// gaugeOrCounter reads a single-series family regardless of its type.
func gaugeOrCounter(families map[string]*dto.MetricFamily, name string) (float64, bool) {
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) == 0 {
		return 0, false
	}

	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.GetCounter() != nil:
			total += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			total += m.GetGauge().GetValue()
		case m.GetUntyped() != nil:
			total += m.GetUntyped().GetValue()
		}
	}
	if math.IsNaN(total) {
		return 0, false
	}
	return total, true
}

// histogramTotals sums sample count and duration across a histogram
// family's label sets.
func histogramTotals(families map[string]*dto.MetricFamily, name string) (count, sum float64) {
	mf, ok := families[name]
	if !ok {
		return 0, 0
	}
	for _, m := range mf.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		count += float64(h.GetSampleCount())
		sum += h.GetSampleSum()
	}
	return count, sum
}
