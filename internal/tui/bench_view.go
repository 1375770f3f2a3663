package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m BenchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	header := TitleStyle.Render("HTTPXGO BENCH")
	if m.done {
		header += "  " + OkStyle.Render("done")
	} else {
		header += "  " + spinnerFrames[m.frame]
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	content := lipgloss.JoinVertical(lipgloss.Left,
		LabelStyle.Render("Target"),
		ValueStyle.Render(m.target),
		"",
		m.renderProgress(),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderPair("Requests", fmt.Sprintf("%d / %d", m.snap.Total, m.total)),
			"   ",
			m.renderPair("Errors", m.renderErrors()),
			"   ",
			m.renderPair("Throughput", fmt.Sprintf("%.1f req/s", m.snap.RPS)),
		),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderPair("p50", m.snap.P50.String()),
			"   ",
			m.renderPair("p95", m.snap.P95.String()),
			"   ",
			m.renderPair("p99", m.snap.P99.String()),
			"   ",
			m.renderPair("max", m.snap.Max.String()),
		),
		"",
		m.renderPair("Bytes read", fmt.Sprintf("%d", m.snap.BytesRead)),
	)

	b.WriteString(BorderStyle.Width(64).Render(content))
	b.WriteString("\n\n")
	if m.done {
		b.WriteString(HelpStyle.Render("Q: quit"))
	} else {
		b.WriteString(HelpStyle.Render("Q: abort"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m BenchModel) renderPair(label, value string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		LabelStyle.Render(label),
		ValueStyle.Render(value),
	)
}

func (m BenchModel) renderErrors() string {
	s := fmt.Sprintf("%d (%.1f%%)", m.snap.Errors, m.snap.ErrorRate())
	if m.snap.Errors > 0 {
		return ErrStyle.Render(s)
	}
	return OkStyle.Render(s)
}

func (m BenchModel) renderProgress() string {
	const width = 52
	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.snap.Total) / float64(m.total)
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * width)
	bar := BarFillStyle.Render(strings.Repeat("█", filled)) +
		BarEmptyStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, ratio*100)
}
