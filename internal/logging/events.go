package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single event line before truncation.
	MaxLineLength = 4096

	// MaxBufferedEvents is the maximum number of events kept in the buffer.
	MaxBufferedEvents = 100
)

// EventBuffer keeps a bounded history of pipeline events for the dashboard
// and the exit summary. Events are also forwarded to the structured logger.
type EventBuffer struct {
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent events
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewEventBuffer creates an event buffer backed by the given logger.
func NewEventBuffer(logger *slog.Logger, verbose bool) *EventBuffer {
	return &EventBuffer{
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedEvents),
	}
}

// Record stores an event line and logs it at the given level.
func (b *EventBuffer) Record(level slog.Level, format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	// Truncate if too long
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	b.mu.Lock()
	b.buffer[b.bufIdx] = line
	b.bufIdx = (b.bufIdx + 1) % MaxBufferedEvents
	b.mu.Unlock()

	// In non-verbose mode, debug events are buffered but not logged
	if !b.verbose && level == slog.LevelDebug {
		return
	}

	b.logger.Log(nil, level, "pipeline_event", "event", line)
}

// RecentLines returns the most recent event lines, oldest first.
func (b *EventBuffer) RecentLines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > MaxBufferedEvents {
		n = MaxBufferedEvents
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (b.bufIdx - n + i + MaxBufferedEvents) % MaxBufferedEvents
		if b.buffer[idx] != "" {
			lines = append(lines, b.buffer[idx])
		}
	}

	return lines
}

// WarningPatterns are event fragments worth counting for the exit summary.
var WarningPatterns = []string{
	"retry",
	"fallback",
	"fetch failed",
	"timeout",
}

// CountWarnings counts occurrences of warning patterns in the buffer.
func (b *EventBuffer) CountWarnings() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[string]int)

	for _, line := range b.buffer {
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, pattern := range WarningPatterns {
			if strings.Contains(lower, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
