// Session summary formatter displayed at the end of a pipeline run.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/timefmt"
)

// SummaryConfig holds run-level facts the formatter needs beyond the
// analytics snapshot.
type SummaryConfig struct {
	// RunID identifies the pipeline run.
	RunID string

	// Date is the session date stamp (ISO date).
	Date string

	// RunDuration is the wall-clock time the pipeline took.
	RunDuration time.Duration

	// TotalSegments, FailedSegments, SucceededSegments are the segment
	// outcome counts from the orchestrator.
	TotalSegments     int
	FailedSegments    int
	SucceededSegments int

	// SentinelLaps counts fallback records substituted for failed
	// extractions.
	SentinelLaps int

	// MetricsAddr is the local Prometheus endpoint, empty when disabled.
	MetricsAddr string
}

// FormatSessionSummary renders the session analytics for terminal display.
func FormatSessionSummary(s *SessionStats, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════\n")
	b.WriteString("                     Swim Session Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════\n")
	if cfg.Date != "" {
		fmt.Fprintf(&b, "Session Date:           %s\n", cfg.Date)
	}
	if cfg.RunID != "" {
		fmt.Fprintf(&b, "Run ID:                 %s\n", cfg.RunID)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", timefmt.FormatClock(cfg.RunDuration))
	fmt.Fprintf(&b, "Total Laps:             %d\n", s.TotalLaps)
	b.WriteString("\n")

	b.WriteString("Segments:\n")
	fmt.Fprintf(&b, "  Total:                %d\n", cfg.TotalSegments)
	fmt.Fprintf(&b, "  Succeeded:            %d\n", cfg.SucceededSegments)
	fmt.Fprintf(&b, "  Failed:               %d\n", cfg.FailedSegments)
	if cfg.SentinelLaps > 0 {
		fmt.Fprintf(&b, "  Fallback laps:        %d\n", cfg.SentinelLaps)
	}
	b.WriteString("\n")

	b.WriteString("───────────────────────────────────────────────────────────────────\n")
	b.WriteString("                    Performance (lower is better)\n")
	b.WriteString("───────────────────────────────────────────────────────────────────\n\n")
	fmt.Fprintf(&b, "  %-10s %10s %10s %10s %10s\n", "Metric", "Best", "Worst", "Average", "Median")
	b.WriteString("  " + strings.Repeat("─", 54) + "\n")

	shown := 0
	for _, m := range Metrics {
		sum := s.Summary(m)
		if !sum.Valid() {
			continue
		}
		shown++
		fmt.Fprintf(&b, "  %-10s %10s %10s %10s %10s\n",
			m.String(),
			sum.FormatBest(),
			sum.FormatWorst(),
			sum.FormatAverage(),
			formatValue(m, median(sum.Values)),
		)
	}
	if shown == 0 {
		b.WriteString("  (no valid metric values this session)\n")
	}
	b.WriteString("\n")

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString("═══════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// median computes P50 over the value set via T-Digest.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	td := tdigest.NewWithCompression(100)
	for _, v := range values {
		td.Add(v, 1)
	}
	return td.Quantile(0.5)
}
