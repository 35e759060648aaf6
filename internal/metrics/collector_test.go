package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{
		Version:    "test",
		BackendURL: "http://localhost:8000",
	}, reg)

	c.RunStarted()
	c.SegmentFetched()
	c.SegmentFetchRetried()
	c.SegmentFailed()
	c.ExtractionSucceeded()
	c.ExtractionFallback()
	c.LapRecorded(3)
	c.ObserveStep(StepExtract, 120*time.Millisecond)
	c.RunCompleted(3, time.Second)
	c.RunFailed()

	if got := c.TotalLapRecords(); got != 3 {
		t.Errorf("TotalLapRecords = %d, want 3", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"swim_ocr_pipeline_info",
		"swim_ocr_runs_started_total",
		"swim_ocr_lap_records_total",
		"swim_ocr_step_duration_seconds",
		"swim_ocr_run_duration_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
