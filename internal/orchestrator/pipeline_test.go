package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/swimapi"
)

// fakeBackend scripts per-segment outcomes for pipeline tests.
type fakeBackend struct {
	manifest *swimapi.SplitManifest
	splitErr error

	// fetchFailures[id] is how many fetch calls for id fail before one
	// succeeds.
	fetchFailures map[string]int
	fetchCalls    map[string]int

	laps       map[string][]record.LapRecord
	extractErr map[string]error
}

func (f *fakeBackend) Split(ctx context.Context, image []byte, filename string) (*swimapi.SplitManifest, error) {
	if f.splitErr != nil {
		return nil, f.splitErr
	}
	return f.manifest, nil
}

func (f *fakeBackend) FetchSegment(ctx context.Context, segmentID string) ([]byte, error) {
	if f.fetchCalls == nil {
		f.fetchCalls = make(map[string]int)
	}
	f.fetchCalls[segmentID]++
	if f.fetchCalls[segmentID] <= f.fetchFailures[segmentID] {
		return nil, fmt.Errorf("fetch segment %s: status 500", segmentID)
	}
	return []byte("img-" + segmentID), nil
}

func (f *fakeBackend) ExtractSegment(ctx context.Context, segmentID string) ([]record.LapRecord, error) {
	if err := f.extractErr[segmentID]; err != nil {
		return nil, err
	}
	return f.laps[segmentID], nil
}

func manifestOf(splitID string, n int) *swimapi.SplitManifest {
	m := &swimapi.SplitManifest{SplitID: splitID, TotalSegments: n}
	for i := 0; i < n; i++ {
		m.SegmentInfo = append(m.SegmentInfo, swimapi.SegmentInfo{
			SegmentID:     i,
			EstimatedLaps: 2,
			Height:        140,
		})
	}
	return m
}

func lap(stroke string, strokes int) record.LapRecord {
	return record.LapRecord{
		StrokeType: stroke,
		LapLengthM: 50,
		Duration:   "1:30",
		Strokes:    strokes,
		Swolf:      strokes + 90,
		Pace:       "2:00",
	}
}

func testPipeline(backend BackendClient, cb Callbacks) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{
		Backoff: BackoffConfig{
			Initial:    time.Millisecond,
			Max:        2 * time.Millisecond,
			Multiplier: 1.5,
		},
		Seed:      42,
		Callbacks: cb,
	}
	return New(backend, cfg, logger, nil)
}

func TestRunFetchFailureAndMultiLap(t *testing.T) {
	// Split returns 2 segments; segment 0's fetch fails twice; segment 1
	// extracts two laps. Expect exactly 2 records numbered 1 and 2 and a
	// failed-segment count of 1.
	backend := &fakeBackend{
		manifest:      manifestOf("abc", 2),
		fetchFailures: map[string]int{"abc_0": 2},
		laps: map[string][]record.LapRecord{
			"abc_1": {lap("Freestyle", 20), lap("Breaststroke", 26)},
		},
	}

	res, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Session.Segments) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Session.Segments))
	}
	if res.Session.Segments[0].Lap != 1 || res.Session.Segments[1].Lap != 2 {
		t.Errorf("lap numbers = %d, %d, want 1, 2",
			res.Session.Segments[0].Lap, res.Session.Segments[1].Lap)
	}
	if res.FailedSegments != 1 {
		t.Errorf("FailedSegments = %d, want 1", res.FailedSegments)
	}
	if res.SucceededSegments != 1 {
		t.Errorf("SucceededSegments = %d, want 1", res.SucceededSegments)
	}
	if got := backend.fetchCalls["abc_0"]; got != 2 {
		t.Errorf("fetch attempts for abc_0 = %d, want 2 (one retry)", got)
	}
	if res.Segments[0].Outcome != OutcomeFetchFailed {
		t.Errorf("segment 0 outcome = %v", res.Segments[0].Outcome)
	}
	if res.Segments[1].Outcome != OutcomeExtracted {
		t.Errorf("segment 1 outcome = %v", res.Segments[1].Outcome)
	}
}

func TestRunExtractionFailureYieldsSentinel(t *testing.T) {
	backend := &fakeBackend{
		manifest:   manifestOf("abc", 1),
		extractErr: map[string]error{"abc_0": errors.New("extract segment abc_0: status 500")},
	}

	res, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Session.Segments) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Session.Segments))
	}
	got := res.Session.Segments[0]
	want := record.Sentinel(1)
	if got != want {
		t.Errorf("sentinel record = %+v, want %+v", got, want)
	}
	if res.SentinelSegments != 1 {
		t.Errorf("SentinelSegments = %d, want 1", res.SentinelSegments)
	}
	if res.FailedSegments != 0 {
		t.Errorf("FailedSegments = %d, want 0", res.FailedSegments)
	}
}

func TestRunLapNumberingInvariant(t *testing.T) {
	// Any mix of outcomes must yield lap numbers exactly 1..N.
	backend := &fakeBackend{
		manifest:      manifestOf("abc", 5),
		fetchFailures: map[string]int{"abc_1": 2},
		laps: map[string][]record.LapRecord{
			"abc_0": {lap("Freestyle", 20), lap("Freestyle", 22), lap("Freestyle", 24)},
			"abc_2": {}, // successful extraction, zero laps: no sentinel
			"abc_4": {lap("Butterfly", 30)},
		},
		extractErr: map[string]error{"abc_3": errors.New("boom")},
	}

	res, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 3 laps + fetch-failed + empty + sentinel + 1 lap = 5 records.
	if len(res.Session.Segments) != 5 {
		t.Fatalf("records = %d, want 5", len(res.Session.Segments))
	}
	for i, r := range res.Session.Segments {
		if r.Lap != i+1 {
			t.Errorf("records[%d].Lap = %d, want %d", i, r.Lap, i+1)
		}
	}

	if res.SucceededSegments != 3 {
		t.Errorf("SucceededSegments = %d, want 3", res.SucceededSegments)
	}
	if res.FailedSegments != 1 {
		t.Errorf("FailedSegments = %d, want 1", res.FailedSegments)
	}
	if res.SentinelSegments != 1 {
		t.Errorf("SentinelSegments = %d, want 1", res.SentinelSegments)
	}
	if res.Segments[2].Outcome != OutcomeEmpty {
		t.Errorf("segment 2 outcome = %v, want %v", res.Segments[2].Outcome, OutcomeEmpty)
	}
	if res.Segments[3].Outcome != OutcomeFallback {
		t.Errorf("segment 3 outcome = %v, want %v", res.Segments[3].Outcome, OutcomeFallback)
	}
}

func TestRunOverridesBackendLapNumbers(t *testing.T) {
	// The backend's own lap numbering (OCRed from the image, possibly
	// wrong) is replaced by the global counter.
	l1, l2 := lap("Freestyle", 20), lap("Freestyle", 22)
	l1.Lap, l2.Lap = 17, 3
	backend := &fakeBackend{
		manifest: manifestOf("abc", 1),
		laps:     map[string][]record.LapRecord{"abc_0": {l1, l2}},
	}

	res, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Session.Segments[0].Lap != 1 || res.Session.Segments[1].Lap != 2 {
		t.Errorf("lap numbers = %d, %d, want 1, 2",
			res.Session.Segments[0].Lap, res.Session.Segments[1].Lap)
	}
}

func TestRunSplitFailureTerminal(t *testing.T) {
	backend := &fakeBackend{splitErr: errors.New("split: No segments found in image (status 400)")}

	_, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err == nil {
		t.Fatal("Run should fail when split fails")
	}
}

func TestRunFetchRetrySucceeds(t *testing.T) {
	backend := &fakeBackend{
		manifest:      manifestOf("abc", 1),
		fetchFailures: map[string]int{"abc_0": 1},
		laps:          map[string][]record.LapRecord{"abc_0": {lap("Freestyle", 20)}},
	}

	res, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FailedSegments != 0 {
		t.Errorf("FailedSegments = %d, want 0", res.FailedSegments)
	}
	if got := backend.fetchCalls["abc_0"]; got != 2 {
		t.Errorf("fetch attempts = %d, want 2", got)
	}
	if len(res.Session.Segments) != 1 {
		t.Errorf("records = %d, want 1", len(res.Session.Segments))
	}
}

func TestRunSegmentImageCache(t *testing.T) {
	backend := &fakeBackend{
		manifest: manifestOf("abc", 2),
		laps: map[string][]record.LapRecord{
			"abc_0": {lap("Freestyle", 20)},
			"abc_1": {lap("Freestyle", 22)},
		},
	}

	res, err := testPipeline(backend, Callbacks{}).Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Images) != 2 {
		t.Fatalf("cached images = %d, want 2", len(res.Images))
	}
	if string(res.Images["abc_0"]) != "img-abc_0" {
		t.Errorf("Images[abc_0] = %q", res.Images["abc_0"])
	}
}

func TestRunCallbacksAndStates(t *testing.T) {
	backend := &fakeBackend{
		manifest:   manifestOf("abc", 2),
		laps:       map[string][]record.LapRecord{"abc_0": {lap("Freestyle", 20)}},
		extractErr: map[string]error{"abc_1": errors.New("boom")},
	}

	var states []State
	var done []SegmentOutcome
	var started int
	cb := Callbacks{
		OnStateChange:  func(old, next State) { states = append(states, next) },
		OnSegmentStart: func(index, total int) { started++ },
		OnSegmentDone:  func(index int, outcome SegmentOutcome, laps int) { done = append(done, outcome) },
	}

	if _, err := testPipeline(backend, cb).Run(context.Background(), []byte("png"), "laps.png"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if started != 2 {
		t.Errorf("OnSegmentStart calls = %d, want 2", started)
	}
	if len(done) != 2 || done[0] != OutcomeExtracted || done[1] != OutcomeFallback {
		t.Errorf("outcomes = %v", done)
	}
	if states[0] != StateSplitting {
		t.Errorf("first state = %v, want %v", states[0], StateSplitting)
	}
	if states[len(states)-1] != StateDone {
		t.Errorf("last state = %v, want %v", states[len(states)-1], StateDone)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &fakeBackend{
		manifest:      manifestOf("abc", 1),
		fetchFailures: map[string]int{"abc_0": 2},
	}
	if _, err := testPipeline(backend, Callbacks{}).Run(ctx, []byte("png"), "laps.png"); err == nil {
		t.Fatal("Run should surface caller cancellation")
	}
}

func TestRunDateStamp(t *testing.T) {
	backend := &fakeBackend{
		manifest: manifestOf("abc", 1),
		laps:     map[string][]record.LapRecord{"abc_0": {lap("Freestyle", 20)}},
	}

	p := testPipeline(backend, Callbacks{})
	p.now = func() time.Time { return time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC) }

	res, err := p.Run(context.Background(), []byte("png"), "laps.png")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Session.Date != "2026-08-30" {
		t.Errorf("Date = %q, want %q", res.Session.Date, "2026-08-30")
	}
	if res.RunID == "" {
		t.Error("RunID should be set")
	}
}
