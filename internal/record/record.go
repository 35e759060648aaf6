// Package record defines the canonical per-lap schema and the normalization
// boundary that reconciles the two field shapes upstream producers emit.
//
// The OCR backend writes raw numeric fields (duration_sec,
// pace_per_100m_sec) while older tracker exports carried pre-formatted
// strings (duration, pace_per_100m). A LapRecord may arrive with either,
// and consumers must not need to know which.
package record

import (
	"strings"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/timefmt"
)

// Stroke labels recognized by the backend's extractor. Anything else is
// carried through as-is; sentinel records use StrokeUnknown.
const (
	StrokeBreaststroke = "Breaststroke"
	StrokeFreestyle    = "Freestyle"
	StrokeBackstroke   = "Backstroke"
	StrokeButterfly    = "Butterfly"
	StrokeUnknown      = "Unknown"
)

// LapRecord is one lap's measured performance. Field names match the
// backend wire format exactly; the dual duration/pace fields are resolved
// through Normalize, never compared directly.
type LapRecord struct {
	Lap           int    `json:"lap"`
	StrokeType    string `json:"stroke_type"`
	LapLengthM    int    `json:"lap_length_m"`
	Duration      string `json:"duration,omitempty"`
	DurationSec   int    `json:"duration_sec,omitempty"`
	Strokes       int    `json:"strokes"`
	Swolf         int    `json:"swolf"`
	Pace          string `json:"pace_per_100m,omitempty"`
	PaceSec       int    `json:"pace_per_100m_sec,omitempty"`
}

// Normalized is the single authoritative numeric view of a record's timed
// metrics, resolved once on ingestion. A zero value means the metric is
// absent and must be excluded from statistics.
type Normalized struct {
	DurationSec int
	PaceSec     int
}

// Normalize resolves each dual-representation metric to one comparable
// value. The formatted string wins when present; a raw-seconds field is
// round-tripped through the codec so both paths yield identical numbers for
// identical times.
func (r LapRecord) Normalize() Normalized {
	return Normalized{
		DurationSec: resolveSeconds(r.Duration, r.DurationSec),
		PaceSec:     resolveSeconds(r.Pace, r.PaceSec),
	}
}

func resolveSeconds(display string, raw int) int {
	if strings.TrimSpace(display) != "" {
		return timefmt.FormattedToSeconds(display)
	}
	if raw > 0 {
		return timefmt.FormattedToSeconds(timefmt.SecondsToFormatted(raw))
	}
	return 0
}

// DisplayDuration returns the formatted duration, deriving it from the raw
// field when only that side is populated.
func (r LapRecord) DisplayDuration() string {
	if strings.TrimSpace(r.Duration) != "" {
		return r.Duration
	}
	return timefmt.SecondsToFormatted(r.DurationSec)
}

// DisplayPace returns the formatted pace-per-100m, deriving it from the raw
// field when only that side is populated.
func (r LapRecord) DisplayPace() string {
	if strings.TrimSpace(r.Pace) != "" {
		return r.Pace
	}
	return timefmt.SecondsToFormatted(r.PaceSec)
}

// Sentinel returns the fixed placeholder record substituted when extraction
// fails for a segment. It consumes one lap number like any real record so
// the session's lap sequence stays gapless.
func Sentinel(lap int) LapRecord {
	return LapRecord{
		Lap:        lap,
		StrokeType: StrokeUnknown,
		LapLengthM: 50,
		Duration:   "1:30",
		Strokes:    25,
		Swolf:      100,
		Pace:       "2:00",
	}
}

// CanonicalStroke maps common stroke aliases onto the canon labels. Labels
// outside the canon pass through unchanged; an empty label becomes
// StrokeUnknown. The backend canonicalizes its own output, so this mainly
// guards records coming from older exports.
func CanonicalStroke(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "breaststroke", "breast":
		return StrokeBreaststroke
	case "freestyle", "free":
		return StrokeFreestyle
	case "backstroke", "back":
		return StrokeBackstroke
	case "butterfly", "fly":
		return StrokeButterfly
	case "":
		return StrokeUnknown
	default:
		return s
	}
}
