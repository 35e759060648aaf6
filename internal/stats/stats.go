// Package stats computes per-session performance analytics over normalized
// lap records:
// - best/worst/average per tracked metric
// - tier classification of a value against the session's distribution
// - the formatted session summary printed at exit
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/timefmt"
)

// Metric identifies one tracked performance metric.
type Metric int

const (
	MetricDuration Metric = iota // lap duration, seconds
	MetricStrokes                // strokes per lap
	MetricSwolf                  // stroke-efficiency score
	MetricPace                   // seconds per 100 m
)

// Metrics lists all tracked metrics in presentation order.
var Metrics = []Metric{MetricDuration, MetricStrokes, MetricSwolf, MetricPace}

// String returns a human-readable name for the metric.
func (m Metric) String() string {
	switch m {
	case MetricDuration:
		return "duration"
	case MetricStrokes:
		return "strokes"
	case MetricSwolf:
		return "swolf"
	case MetricPace:
		return "pace"
	default:
		return "unknown"
	}
}

// timeValued reports whether the metric is displayed as a time string.
func (m Metric) timeValued() bool {
	return m == MetricDuration || m == MetricPace
}

// NotApplicable is the display sentinel for a metric with no valid values.
const NotApplicable = "N/A"

// Tier classifies a value against the session's observed range for its
// metric. Lower is better for every tracked metric.
type Tier string

const (
	TierBest             Tier = "BEST"
	TierGood             Tier = "GOOD"
	TierAverage          Tier = "AVERAGE"
	TierNeedsImprovement Tier = "NEEDS_IMPROVEMENT"
	TierWorst            Tier = "WORST"
)

// MetricSummary is a read-only snapshot of one metric's distribution,
// computed fresh on every Summarize call.
type MetricSummary struct {
	Metric Metric
	Best   float64
	Worst  float64
	Values []float64 // valid (> 0) values, record order
}

// Valid reports whether the metric had any usable values this session.
func (s MetricSummary) Valid() bool {
	return len(s.Values) > 0
}

// Average returns the arithmetic mean of the valid values, or 0 when empty.
func (s MetricSummary) Average() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return stat.Mean(s.Values, nil)
}

// FormatBest renders the best value for display, or the N/A sentinel.
func (s MetricSummary) FormatBest() string {
	if !s.Valid() {
		return NotApplicable
	}
	return formatValue(s.Metric, s.Best)
}

// FormatWorst renders the worst value for display, or the N/A sentinel.
func (s MetricSummary) FormatWorst() string {
	if !s.Valid() {
		return NotApplicable
	}
	return formatValue(s.Metric, s.Worst)
}

// FormatAverage renders the mean: a time string for duration and pace, a
// one-decimal number for strokes and swolf.
func (s MetricSummary) FormatAverage() string {
	if !s.Valid() {
		return NotApplicable
	}
	if s.Metric.timeValued() {
		return timefmt.SecondsToFormatted(int(math.Round(s.Average())))
	}
	return fmt.Sprintf("%.1f", s.Average())
}

// Classify places a value in a performance tier relative to this metric's
// observed values. Ties at the extremes win before the quartile checks, so
// when every value is equal everything classifies as BEST.
func (s MetricSummary) Classify(value float64) Tier {
	if !s.Valid() {
		return TierAverage
	}

	min, max := s.Best, s.Worst
	switch {
	case value == min:
		return TierBest
	case value == max:
		return TierWorst
	case value <= min+0.25*(max-min):
		return TierGood
	case value >= min+0.75*(max-min):
		return TierNeedsImprovement
	default:
		return TierAverage
	}
}

// SessionStats is the analytics snapshot for one session's record set.
type SessionStats struct {
	TotalLaps int
	Summaries map[Metric]MetricSummary
}

// Summary returns the snapshot for one metric.
func (s *SessionStats) Summary(m Metric) MetricSummary {
	return s.Summaries[m]
}

// Summarize computes the per-metric distributions over the record set.
// Only normalized values > 0 participate; absent or zero metrics drop out
// of the distribution but stay on the exported records untouched.
func Summarize(records []record.LapRecord) *SessionStats {
	s := &SessionStats{
		TotalLaps: len(records),
		Summaries: make(map[Metric]MetricSummary, len(Metrics)),
	}

	for _, m := range Metrics {
		var values []float64
		for _, r := range records {
			if v := metricValue(m, r); v > 0 {
				values = append(values, v)
			}
		}

		sum := MetricSummary{Metric: m, Values: values}
		if len(values) > 0 {
			sum.Best, sum.Worst = values[0], values[0]
			for _, v := range values[1:] {
				if v < sum.Best {
					sum.Best = v
				}
				if v > sum.Worst {
					sum.Worst = v
				}
			}
		}
		s.Summaries[m] = sum
	}

	return s
}

// metricValue extracts one metric's normalized numeric value from a record.
func metricValue(m Metric, r record.LapRecord) float64 {
	switch m {
	case MetricDuration:
		return float64(r.Normalize().DurationSec)
	case MetricStrokes:
		return float64(r.Strokes)
	case MetricSwolf:
		return float64(r.Swolf)
	case MetricPace:
		return float64(r.Normalize().PaceSec)
	default:
		return 0
	}
}

// formatValue renders a single metric value for display.
func formatValue(m Metric, v float64) string {
	if m.timeValued() {
		return timefmt.SecondsToFormatted(int(math.Round(v)))
	}
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}
