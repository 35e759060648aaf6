package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/orchestrator"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/stats"
)

func TestView_Initial(t *testing.T) {
	m := newTestModel()

	out := m.View()
	if !strings.Contains(out, "go-swim-ocr-pipeline") {
		t.Error("view should contain the app name")
	}
	if !strings.Contains(out, "Segment Progress") {
		t.Error("view should contain the progress section")
	}
	if !strings.Contains(out, "session.png") {
		t.Error("footer should contain the image path")
	}
}

func TestView_SegmentTable(t *testing.T) {
	var model tea.Model = newTestModel()
	model, _ = model.Update(SegmentStartMsg{Index: 0, Total: 2})
	model, _ = model.Update(SegmentDoneMsg{Index: 0, Outcome: orchestrator.OutcomeExtracted, Laps: 3})

	out := model.(Model).View()
	if !strings.Contains(out, "Segments") {
		t.Error("view should contain the segment table")
	}
	if !strings.Contains(out, "3 laps") {
		t.Errorf("view should show lap count for extracted segment:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Error("view should show pending segments")
	}
}

func TestView_FailedRun(t *testing.T) {
	var model tea.Model = newTestModel()
	model, _ = model.Update(StateMsg{State: orchestrator.StateFailed})

	out := model.(Model).View()
	if !strings.Contains(out, "Run failed") {
		t.Error("view should show failure status")
	}
}

func TestView_Analytics(t *testing.T) {
	records := []record.LapRecord{
		{Lap: 1, Duration: "1:30", Strokes: 20, Swolf: 55, Pace: "2:00"},
		{Lap: 2, Duration: "1:45", Strokes: 25, Swolf: 60, Pace: "2:10"},
	}

	var model tea.Model = newTestModel()
	model, _ = model.Update(DoneMsg{Stats: stats.Summarize(records)})

	out := model.(Model).View()
	if !strings.Contains(out, "Session Analytics") {
		t.Error("view should contain analytics after DoneMsg")
	}
	if !strings.Contains(out, "1:30") {
		t.Errorf("analytics should show the best duration:\n%s", out)
	}
}
