package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/metrics"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/orchestrator"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// render renders the dashboard.
func (m Model) render() string {
	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Progress section
	sections = append(sections, m.renderProgress())

	// Per-segment table (once the split is known)
	if m.totalSegments > 0 {
		sections = append(sections, m.renderSegmentTable())
	}

	// Final analytics
	if m.sessionStats != nil {
		sections = append(sections, m.renderAnalytics())
	}

	// Backend exporter metrics (optional)
	if bm := m.scraper.Current(); bm != nil {
		sections = append(sections, m.renderBackendStats(bm))
	}

	// Recent events (optional)
	if m.events != nil {
		if lines := m.events.RecentLines(5); len(lines) > 0 {
			sections = append(sections, m.renderEvents(lines))
		}
	}

	// Footer
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" go-swim-ocr-pipeline │ %s │ Laps: %d │ Elapsed: %s ",
		m.renderStateLabel(),
		m.lapCount,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

func (m Model) renderStateLabel() string {
	label := m.state.String()
	switch m.state {
	case orchestrator.StateDone:
		return statusOK.Render("● " + label)
	case orchestrator.StateFailed:
		return statusError.Render("● " + label)
	case orchestrator.StateIdle:
		return dimStyle.Render("● " + label)
	default:
		return statusInfo.Render("● " + label)
	}
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.Progress()

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	var status string
	switch {
	case m.state == orchestrator.StateFailed:
		status = statusError.Render("✗ Run failed")
	case m.totalSegments == 0:
		status = statusInfo.Render("Splitting screenshot...")
	case progress >= 1.0:
		status = statusOK.Render("✓ All segments processed")
	default:
		status = statusInfo.Render(fmt.Sprintf("Processing segments... %d/%d", m.DoneSegments(), m.totalSegments))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Segment Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Segment Table
// =============================================================================

func (m Model) renderSegmentTable() string {
	rows := make([]string, 0, len(m.segments))

	for i, row := range m.segments {
		label := labelStyle.Render(fmt.Sprintf("segment %d:", i))

		var cell string
		switch {
		case row.active:
			cell = statusInfo.Render("… processing")
		case !row.done:
			cell = dimStyle.Render("pending")
		default:
			style := GetOutcomeStyle(row.outcome)
			cell = style.Render(fmt.Sprintf("%s %s", GetOutcomeGlyph(row.outcome), row.outcome))
			if row.outcome == orchestrator.OutcomeExtracted {
				cell += mutedStyle.Render(fmt.Sprintf("  (%d laps)", row.laps))
			}
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left, label, cell))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Segments")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Final Analytics
// =============================================================================

func (m Model) renderAnalytics() string {
	s := m.sessionStats

	rows := []string{
		RenderKeyValueWide("Total laps", fmt.Sprintf("%d", s.TotalLaps)),
	}

	for _, metric := range stats.Metrics {
		sum, ok := s.Summaries[metric]
		if !ok || !sum.Valid() {
			continue
		}
		rows = append(rows, renderMetricRow(metric.String(), sum))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Session Analytics")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderMetricRow(label string, sum stats.MetricSummary) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render(label+":"),
		valueGoodStyle.Render(sum.FormatBest()),
		mutedStyle.Render(" best  "),
		valueBadStyle.Render(sum.FormatWorst()),
		mutedStyle.Render(" worst  "),
		valueStyle.Render(sum.FormatAverage()),
		mutedStyle.Render(" avg"),
	)
}

// =============================================================================
// Backend Exporter Metrics
// =============================================================================

func (m Model) renderBackendStats(bm *metrics.BackendMetrics) string {
	rows := []string{
		RenderKeyValueWide("CPU", fmt.Sprintf("%.1f%%", bm.CPURate*100)),
		RenderKeyValueWide("Memory", formatBytes(bm.MemBytes)),
		RenderKeyValueWide("Request rate", formatRate(bm.ReqRate)),
	}
	if bm.ReqAvgLatency > 0 {
		rows = append(rows, RenderKeyValueWide("Avg latency", fmt.Sprintf("%.0f ms", bm.ReqAvgLatency*1000)))
	}
	if bm.WindowSeconds > 0 {
		rows = append(rows, RenderKeyValueWide(
			fmt.Sprintf("Rate p50/max (%ds)", bm.WindowSeconds),
			fmt.Sprintf("%s / %s", formatRate(bm.ReqRateP50), formatRate(bm.ReqRateMax)),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("OCR Backend")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Events
// =============================================================================

func (m Model) renderEvents(lines []string) string {
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, dimStyle.Render(line))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recent Events")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	parts := fmt.Sprintf("%s │ backend %s", m.imagePath, m.backendURL)
	if m.metricsAddr != "" {
		parts += fmt.Sprintf(" │ metrics http://%s/metrics", m.metricsAddr)
	}
	parts += " │ q: quit"

	return footerStyle.Render(parts)
}
