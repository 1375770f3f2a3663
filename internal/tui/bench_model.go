// Package tui renders the live bench dashboard.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wolvever/httpx-transport-go/internal/stats"
)

// SnapshotMsg delivers intermediate bench progress.
type SnapshotMsg stats.Snapshot

// DoneMsg delivers the final snapshot.
type DoneMsg stats.Snapshot

type tickMsg time.Time

// BenchModel is the TUI model for a running benchmark.
type BenchModel struct {
	target   string
	total    int
	width    int
	height   int
	frame    int
	snap     stats.Snapshot
	done     bool
	quitting bool
}

// NewBenchModel creates the dashboard model for a run of total
// requests against target.
func NewBenchModel(target string, total int) BenchModel {
	return BenchModel{target: target, total: total}
}

func (m BenchModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m BenchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()

	case SnapshotMsg:
		m.snap = stats.Snapshot(msg)
		return m, nil

	case DoneMsg:
		m.snap = stats.Snapshot(msg)
		m.done = true
		return m, nil
	}
	return m, nil
}
