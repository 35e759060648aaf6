// Package timefmt converts swim durations between raw seconds and the
// human-readable form used by the tracking app ("1:30", "1:05:00").
package timefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Zero is the token returned for zero, negative, or absent durations.
const Zero = "0:00"

// SecondsToFormatted renders a duration in seconds as a display string.
//
// Durations of an hour or more use H:MM:SS (hours unpadded), durations of a
// minute or more use M:SS (minutes unpadded), and sub-minute durations are
// rendered as bare seconds with no colon.
func SecondsToFormatted(sec int) string {
	if sec <= 0 {
		return Zero
	}
	if sec >= 3600 {
		h := sec / 3600
		m := (sec % 3600) / 60
		s := sec % 60
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	if sec >= 60 {
		return fmt.Sprintf("%d:%02d", sec/60, sec%60)
	}
	return strconv.Itoa(sec)
}

// FormattedToSeconds parses a two-part M:SS display string back to seconds.
//
// Only the two-part form is decoded; anything else (empty string, bare
// seconds, H:MM:SS, junk) returns 0. The encoder emits three shapes but lap
// and pace values in this domain are minutes-scale, so the decoder was never
// extended past M:SS. Callers relying on round-trips must stay under an hour.
func FormattedToSeconds(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 0 {
		return 0
	}
	sec, err := strconv.Atoi(parts[1])
	if err != nil || sec < 0 || sec > 59 {
		return 0
	}
	return m*60 + sec
}

// FormatClock formats a wall-clock duration as HH:MM:SS for run summaries.
func FormatClock(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
