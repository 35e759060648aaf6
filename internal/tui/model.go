package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/logging"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/metrics"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/orchestrator"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StateMsg carries a pipeline state transition.
type StateMsg struct {
	State orchestrator.State
}

// SegmentStartMsg marks a segment as in flight.
type SegmentStartMsg struct {
	Index int
	Total int
}

// SegmentDoneMsg carries one finished segment.
type SegmentDoneMsg struct {
	Index   int
	Outcome orchestrator.SegmentOutcome
	Laps    int
}

// DoneMsg carries the finished run and its analytics.
type DoneMsg struct {
	Result *orchestrator.Result
	Stats  *stats.SessionStats
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// segmentRow is the per-segment display state.
type segmentRow struct {
	active  bool
	done    bool
	outcome orchestrator.SegmentOutcome
	laps    int
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	imagePath   string
	backendURL  string
	metricsAddr string

	// Current state
	state         orchestrator.State
	totalSegments int
	segments      []segmentRow
	lapCount      int
	startTime     time.Time
	lastUpdate    time.Time

	// Final run data
	result       *orchestrator.Result
	sessionStats *stats.SessionStats

	// Display options
	width  int
	height int

	// Event history (optional)
	events *logging.EventBuffer

	// Backend exporter scraper (optional)
	scraper *metrics.BackendScraper

	// Quit flag
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	ImagePath   string
	BackendURL  string
	MetricsAddr string
	Events      *logging.EventBuffer
	Scraper     *metrics.BackendScraper
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		imagePath:   cfg.ImagePath,
		backendURL:  cfg.BackendURL,
		metricsAddr: cfg.MetricsAddr,
		events:      cfg.Events,
		scraper:     cfg.Scraper,
		state:       orchestrator.StateIdle,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StateMsg:
		m.state = msg.State
		return m, nil

	case SegmentStartMsg:
		m.ensureSegments(msg.Total)
		if msg.Index >= 0 && msg.Index < len(m.segments) {
			m.segments[msg.Index].active = true
		}
		return m, nil

	case SegmentDoneMsg:
		m.ensureSegments(msg.Index + 1)
		row := &m.segments[msg.Index]
		row.active = false
		row.done = true
		row.outcome = msg.Outcome
		row.laps = msg.Laps
		m.lapCount += msg.Laps
		return m, nil

	case DoneMsg:
		m.result = msg.Result
		m.sessionStats = msg.Stats
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// ensureSegments grows the segment table to at least n rows.
func (m *Model) ensureSegments(n int) {
	if n > m.totalSegments {
		m.totalSegments = n
	}
	for len(m.segments) < n {
		m.segments = append(m.segments, segmentRow{})
	}
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// DoneSegments returns the number of segments that reached an outcome.
func (m Model) DoneSegments() int {
	n := 0
	for _, row := range m.segments {
		if row.done {
			n++
		}
	}
	return n
}

// Progress returns segment completion as a fraction (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.totalSegments == 0 {
		return 0
	}
	return float64(m.DoneSegments()) / float64(m.totalSegments)
}

// LapCount returns the number of lap records produced so far.
func (m Model) LapCount() int {
	return m.lapCount
}

// =============================================================================
// Helper for external use
// =============================================================================

// CallbacksFor returns orchestrator callbacks that feed the given program.
func CallbacksFor(p *tea.Program) orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnStateChange: func(_, next orchestrator.State) {
			p.Send(StateMsg{State: next})
		},
		OnSegmentStart: func(index, total int) {
			p.Send(SegmentStartMsg{Index: index, Total: total})
		},
		OnSegmentDone: func(index int, outcome orchestrator.SegmentOutcome, laps int) {
			p.Send(SegmentDoneMsg{Index: index, Outcome: outcome, Laps: laps})
		},
	}
}

// SendDone sends the finished run to the TUI.
func SendDone(p *tea.Program, result *orchestrator.Result, s *stats.SessionStats) {
	if p != nil {
		p.Send(DoneMsg{Result: result, Stats: s})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatBytes formats bytes with KB/MB/GB suffixes.
func formatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// formatRate formats a rate with appropriate precision.
func formatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}
