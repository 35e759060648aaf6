// Package orchestrator drives one screenshot through the split → fetch →
// extract sequence and accumulates the session's ordered lap records.
//
// Segments are processed strictly sequentially in ascending order. That is
// deliberate: the global lap counter must hand out numbers in a stable,
// deterministic order, which a concurrent fan-out could not guarantee
// without an extra ordering/merge step. Each run owns its manifest, lap
// counter, and record list; nothing is shared across concurrent runs.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/metrics"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/swimapi"
)

// BackendClient is the slice of the swim-OCR backend the pipeline needs.
// *swimapi.Client satisfies it; tests substitute fakes.
type BackendClient interface {
	Split(ctx context.Context, image []byte, filename string) (*swimapi.SplitManifest, error)
	FetchSegment(ctx context.Context, segmentID string) ([]byte, error)
	ExtractSegment(ctx context.Context, segmentID string) ([]record.LapRecord, error)
}

// SegmentOutcome classifies how one segment ended up.
type SegmentOutcome int

const (
	// OutcomeExtracted means extraction succeeded with at least one lap.
	OutcomeExtracted SegmentOutcome = iota

	// OutcomeEmpty means extraction succeeded but found no laps. No
	// sentinel is substituted for this case.
	OutcomeEmpty

	// OutcomeFallback means extraction failed and one sentinel record was
	// substituted.
	OutcomeFallback

	// OutcomeFetchFailed means both fetch attempts failed; the segment was
	// skipped and contributed zero records.
	OutcomeFetchFailed
)

// String returns a human-readable name for the outcome.
func (o SegmentOutcome) String() string {
	switch o {
	case OutcomeExtracted:
		return "extracted"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// SegmentDescriptor is the run's bookkeeping for one split segment.
type SegmentDescriptor struct {
	ID            string // "{split_id}_{index}"
	Index         int
	EstimatedLaps int
	HeightPx      int
	Outcome       SegmentOutcome
}

// Callbacks contains optional hooks for progress reporting (TUI, logging).
// All callbacks run on the pipeline goroutine and must not block.
type Callbacks struct {
	// OnStateChange is called on every run state transition.
	OnStateChange func(old, new State)

	// OnSegmentStart is called before a segment's fetch begins.
	OnSegmentStart func(index, total int)

	// OnSegmentDone is called after a segment reaches its outcome; laps is
	// the number of records the segment contributed.
	OnSegmentDone func(index int, outcome SegmentOutcome, laps int)
}

// Config holds pipeline tuning.
type Config struct {
	Backoff   BackoffConfig
	Seed      int64 // jitter seed; 0 derives one from the clock
	Callbacks Callbacks
}

// Pipeline orchestrates runs against one backend. It is stateless across
// runs; all mutable per-run state lives in the run context.
type Pipeline struct {
	client  BackendClient
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector

	now func() time.Time
}

// Result is the outcome of one run: the session plus segment bookkeeping
// surfaced for reporting.
type Result struct {
	RunID   string
	Session record.Session

	TotalSegments     int
	SucceededSegments int
	FailedSegments    int // fetch failed twice, zero records contributed
	SentinelSegments  int // extraction failed, one sentinel substituted

	Segments []SegmentDescriptor
	Images   map[string][]byte // write-once per segment ID, read-many

	Duration time.Duration
}

// run is the per-run context: the lap counter and accumulators that must
// never be shared across concurrent runs.
type run struct {
	id       string
	state    State
	lap      int // next lap number to hand out
	records  []record.LapRecord
	segments []SegmentDescriptor
	images   map[string][]byte

	succeeded int
	failed    int
	sentinels int
}

// nextLap returns the next global lap number. Called exactly once per
// emitted record, across all segments, so the final sequence is 1..N.
func (r *run) nextLap() int {
	n := r.lap
	r.lap++
	return n
}

// storeImage caches a fetched segment image. Write-once: a second store for
// the same ID is ignored.
func (r *run) storeImage(id string, data []byte) {
	if _, ok := r.images[id]; ok {
		return
	}
	r.images[id] = data
}

// New creates a Pipeline. The collector may be nil when metrics are
// disabled.
func New(client BackendClient, cfg Config, logger *slog.Logger, collector *metrics.Collector) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return &Pipeline{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
}

// SetCallbacks replaces the pipeline's callbacks. Must not be called while
// a run is in flight.
func (p *Pipeline) SetCallbacks(cb Callbacks) {
	p.cfg.Callbacks = cb
}

// Run processes one screenshot to completion. Only two things are terminal:
// a split failure (no segments exist to process) and caller cancellation.
// Every per-segment failure is recovered and surfaced in the result counts.
func (p *Pipeline) Run(ctx context.Context, image []byte, filename string) (*Result, error) {
	start := p.now()
	r := &run{
		id:     uuid.NewString(),
		state:  StateIdle,
		lap:    1,
		images: make(map[string][]byte),
	}

	if p.metrics != nil {
		p.metrics.RunStarted()
	}
	p.logger.Info("run_starting", "run_id", r.id, "filename", filename, "bytes", len(image))

	manifest, err := p.split(ctx, r, image, filename)
	if err != nil {
		p.setState(r, StateFailed)
		if p.metrics != nil {
			p.metrics.RunFailed()
		}
		return nil, err
	}

	r.segments = make([]SegmentDescriptor, manifest.TotalSegments)
	for i := range r.segments {
		r.segments[i] = SegmentDescriptor{
			ID:    fmt.Sprintf("%s_%d", manifest.SplitID, i),
			Index: i,
		}
		if i < len(manifest.SegmentInfo) {
			r.segments[i].EstimatedLaps = manifest.SegmentInfo[i].EstimatedLaps
			r.segments[i].HeightPx = manifest.SegmentInfo[i].Height
		}
	}

	seed := p.cfg.Seed
	if seed == 0 {
		seed = start.UnixNano()
	}
	backoff := NewBackoff(seed, p.cfg.Backoff)

	for i := range r.segments {
		if err := p.processSegment(ctx, r, &r.segments[i], backoff); err != nil {
			p.setState(r, StateFailed)
			return nil, err
		}
	}

	p.setState(r, StateDone)
	duration := p.now().Sub(start)
	if p.metrics != nil {
		p.metrics.RunCompleted(len(r.records), duration)
	}
	p.logger.Info("run_complete",
		"run_id", r.id,
		"laps", len(r.records),
		"segments", len(r.segments),
		"failed_segments", r.failed,
		"sentinel_segments", r.sentinels,
		"duration", duration.String(),
	)

	return &Result{
		RunID: r.id,
		Session: record.Session{
			Date:     start.Format("2006-01-02"),
			Segments: r.records,
		},
		TotalSegments:     len(r.segments),
		SucceededSegments: r.succeeded,
		FailedSegments:    r.failed,
		SentinelSegments:  r.sentinels,
		Segments:          r.segments,
		Images:            r.images,
		Duration:          duration,
	}, nil
}

// split submits the screenshot and validates the manifest. Failure here is
// terminal for the run: it is reported, never retried.
func (p *Pipeline) split(ctx context.Context, r *run, image []byte, filename string) (*swimapi.SplitManifest, error) {
	p.setState(r, StateSplitting)

	stepStart := p.now()
	manifest, err := p.client.Split(ctx, image, filename)
	p.observeStep(metrics.StepSplit, stepStart)
	if err != nil {
		p.logger.Error("split_failed", "run_id", r.id, "error", err)
		return nil, fmt.Errorf("split screenshot: %w", err)
	}
	if manifest.TotalSegments <= 0 {
		p.logger.Error("split_empty", "run_id", r.id)
		return nil, fmt.Errorf("split screenshot: backend returned no segments")
	}

	p.logger.Info("split_complete",
		"run_id", r.id,
		"split_id", manifest.SplitID,
		"total_segments", manifest.TotalSegments,
	)
	return manifest, nil
}

// processSegment takes one segment through fetch and extraction. The only
// error it returns is caller cancellation; segment-level failures are
// absorbed into the run counts.
func (p *Pipeline) processSegment(ctx context.Context, r *run, seg *SegmentDescriptor, backoff *Backoff) error {
	if p.cfg.Callbacks.OnSegmentStart != nil {
		p.cfg.Callbacks.OnSegmentStart(seg.Index, len(r.segments))
	}

	p.setState(r, StateFetching)
	img, err := p.fetchWithRetry(ctx, r, seg, backoff)
	if err != nil {
		return err
	}
	if img == nil {
		// Both attempts failed: the segment is skipped entirely and
		// contributes zero lap records.
		seg.Outcome = OutcomeFetchFailed
		r.failed++
		if p.metrics != nil {
			p.metrics.SegmentFailed()
		}
		p.segmentDone(seg, 0)
		return nil
	}
	r.storeImage(seg.ID, img)
	if p.metrics != nil {
		p.metrics.SegmentFetched()
	}

	p.setState(r, StateExtracting)
	stepStart := p.now()
	laps, err := p.client.ExtractSegment(ctx, seg.ID)
	p.observeStep(metrics.StepExtract, stepStart)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Fallback: one sentinel record, consuming one lap number, keeps
		// the session's numbering gapless.
		sentinel := record.Sentinel(r.nextLap())
		r.records = append(r.records, sentinel)
		seg.Outcome = OutcomeFallback
		r.sentinels++
		if p.metrics != nil {
			p.metrics.ExtractionFallback()
			p.metrics.LapRecorded(1)
		}
		p.logger.Warn("extraction_fallback", "run_id", r.id, "segment_id", seg.ID, "error", err)
		p.segmentDone(seg, 1)
		return nil
	}

	for _, lap := range laps {
		lap.Lap = r.nextLap()
		lap.StrokeType = record.CanonicalStroke(lap.StrokeType)
		r.records = append(r.records, lap)
	}

	if len(laps) == 0 {
		seg.Outcome = OutcomeEmpty
	} else {
		seg.Outcome = OutcomeExtracted
	}
	r.succeeded++
	if p.metrics != nil {
		p.metrics.ExtractionSucceeded()
		p.metrics.LapRecorded(len(laps))
	}
	p.logger.Debug("segment_extracted", "run_id", r.id, "segment_id", seg.ID, "laps", len(laps))
	p.segmentDone(seg, len(laps))
	return nil
}

// fetchWithRetry attempts the segment fetch, retrying exactly once after a
// backoff delay. Returns (nil, nil) when both attempts fail, and an error
// only on caller cancellation.
func (p *Pipeline) fetchWithRetry(ctx context.Context, r *run, seg *SegmentDescriptor, backoff *Backoff) ([]byte, error) {
	backoff.Reset()

	stepStart := p.now()
	img, err := p.client.FetchSegment(ctx, seg.ID)
	p.observeStep(metrics.StepFetch, stepStart)
	if err == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	delay := backoff.Next()
	p.logger.Warn("segment_fetch_retry", "run_id", r.id, "segment_id", seg.ID, "delay", delay.String(), "error", err)
	if p.metrics != nil {
		p.metrics.SegmentFetchRetried()
	}
	if err := sleepCtx(ctx, delay); err != nil {
		return nil, err
	}

	stepStart = p.now()
	img, err = p.client.FetchSegment(ctx, seg.ID)
	p.observeStep(metrics.StepFetch, stepStart)
	if err == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.logger.Warn("segment_fetch_failed", "run_id", r.id, "segment_id", seg.ID, "error", err)
	return nil, nil
}

func (p *Pipeline) setState(r *run, next State) {
	if r.state == next {
		return
	}
	old := r.state
	r.state = next
	if p.cfg.Callbacks.OnStateChange != nil {
		p.cfg.Callbacks.OnStateChange(old, next)
	}
}

func (p *Pipeline) segmentDone(seg *SegmentDescriptor, laps int) {
	if p.cfg.Callbacks.OnSegmentDone != nil {
		p.cfg.Callbacks.OnSegmentDone(seg.Index, seg.Outcome, laps)
	}
}

func (p *Pipeline) observeStep(step string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStep(step, p.now().Sub(start))
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
