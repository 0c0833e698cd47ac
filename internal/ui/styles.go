package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	ColorCyan     = lipgloss.Color("#00FFFF")
	ColorGreen    = lipgloss.Color("#00FF00")
	ColorYellow   = lipgloss.Color("#FFFF00")
	ColorRed      = lipgloss.Color("#FF0000")
	ColorWhite    = lipgloss.Color("#FFFFFF")
	ColorDarkGray = lipgloss.Color("8") // ANSI 8
)

var (
	passStyle  = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	skipStyle  = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(ColorWhite).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDarkGray)
	pathStyle  = lipgloss.NewStyle().Foreground(ColorYellow)
)

// SetupColor picks the color profile for out. Color is disabled when asked
// or when out is not a terminal (NO_COLOR is honored by termenv).
func SetupColor(out io.Writer, enabled bool) {
	if !enabled {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
}

// BranchColor colors reference branches differently from experiments
func BranchColor(branch string, reference bool) lipgloss.Color {
	if reference {
		return ColorGreen
	}
	if branch == "" {
		return ColorWhite
	}
	return ColorCyan
}
