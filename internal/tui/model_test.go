package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/orchestrator"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/stats"
)

func newTestModel() Model {
	return New(Config{
		ImagePath:  "session.png",
		BackendURL: "http://localhost:8000",
	})
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			m := newTestModel()

			var msg tea.KeyMsg
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}

			updated, cmd := m.Update(msg)
			if cmd == nil {
				t.Error("quit key should return a command")
			}
			if !updated.(Model).quitting {
				t.Error("quit key should set quitting")
			}
			if updated.(Model).View() != "" {
				t.Error("quitting model should render empty view")
			}
		})
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := newTestModel()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := updated.(Model)
	if got.width != 120 || got.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", got.width, got.height)
	}
}

func TestModel_SegmentLifecycle(t *testing.T) {
	m := newTestModel()

	var model tea.Model = m
	model, _ = model.Update(StateMsg{State: orchestrator.StateFetching})
	model, _ = model.Update(SegmentStartMsg{Index: 0, Total: 3})

	got := model.(Model)
	if got.totalSegments != 3 {
		t.Errorf("totalSegments = %d, want 3", got.totalSegments)
	}
	if !got.segments[0].active {
		t.Error("segment 0 should be active after start")
	}

	model, _ = model.Update(SegmentDoneMsg{Index: 0, Outcome: orchestrator.OutcomeExtracted, Laps: 4})
	model, _ = model.Update(SegmentDoneMsg{Index: 1, Outcome: orchestrator.OutcomeFetchFailed})

	got = model.(Model)
	if got.segments[0].active {
		t.Error("segment 0 should not be active after done")
	}
	if got.LapCount() != 4 {
		t.Errorf("LapCount = %d, want 4", got.LapCount())
	}
	if got.DoneSegments() != 2 {
		t.Errorf("DoneSegments = %d, want 2", got.DoneSegments())
	}
	if p := got.Progress(); p < 0.66 || p > 0.67 {
		t.Errorf("Progress = %f, want 2/3", p)
	}
}

func TestModel_TickSchedulesNextTick(t *testing.T) {
	m := newTestModel()

	_, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestModel_DoneMsg(t *testing.T) {
	m := newTestModel()

	records := []record.LapRecord{
		{Lap: 1, Duration: "1:30", Strokes: 20, Swolf: 55, Pace: "2:00"},
	}
	s := stats.Summarize(records)

	model, _ := m.Update(DoneMsg{Stats: s})
	got := model.(Model)
	if got.sessionStats == nil {
		t.Fatal("sessionStats not set by DoneMsg")
	}
	if got.sessionStats.TotalLaps != 1 {
		t.Errorf("TotalLaps = %d, want 1", got.sessionStats.TotalLaps)
	}
}

func TestCallbacksFor_NilSafety(t *testing.T) {
	// CallbacksFor needs a live program; here we only verify the helpers
	// tolerate a nil program.
	SendDone(nil, nil, nil)
	SendQuit(nil)
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		d        time.Duration
		expected string
	}{
		{0, "00:00:00"},
		{65 * time.Second, "00:01:05"},
		{3*time.Hour + 25*time.Minute + 45*time.Second, "03:25:45"},
	}

	for _, tc := range testCases {
		if got := formatDuration(tc.d); got != tc.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		n        int64
		expected string
	}{
		{512, "512 B"},
		{2_048, "2.05 KB"},
		{3_500_000, "3.50 MB"},
		{2_000_000_000, "2.00 GB"},
	}

	for _, tc := range testCases {
		if got := formatBytes(tc.n); got != tc.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.n, got, tc.expected)
		}
	}
}

func TestFormatRate(t *testing.T) {
	if got := formatRate(2500); !strings.Contains(got, "K/s") {
		t.Errorf("formatRate(2500) = %q, want K/s suffix", got)
	}
	if got := formatRate(12.3); got != "12.3/s" {
		t.Errorf("formatRate(12.3) = %q", got)
	}
	if got := formatRate(0.5); got != "0.50/s" {
		t.Errorf("formatRate(0.5) = %q", got)
	}
}
