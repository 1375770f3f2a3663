package tui

import "github.com/charmbracelet/lipgloss"

// Sky blue palette, toned down for a status dashboard.
var (
	SkyBlue     = lipgloss.Color("#87CEEB")
	DeepSkyBlue = lipgloss.Color("#00BFFF")
	White       = lipgloss.Color("#FFFFFF")
	LightGray   = lipgloss.Color("#B0B0B0")
	DarkGray    = lipgloss.Color("#404040")
	Green       = lipgloss.Color("#50FA7B")
	Red         = lipgloss.Color("#FF5555")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(DeepSkyBlue).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	OkStyle = lipgloss.NewStyle().
		Foreground(Green)

	ErrStyle = lipgloss.NewStyle().
		Foreground(Red)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SkyBlue).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(DarkGray)

	BarFillStyle  = lipgloss.NewStyle().Foreground(DeepSkyBlue)
	BarEmptyStyle = lipgloss.NewStyle().Foreground(DarkGray)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
