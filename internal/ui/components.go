package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SectionHeader creates a styled section header with a title and color
// Example: "─── MERGE CHECK ─────────"
func SectionHeader(title string, color lipgloss.Color) string {
	dashes := strings.Repeat("─", max(25-len(title), 0))
	headerStyle := lipgloss.NewStyle().Foreground(color)
	titleStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	return fmt.Sprintf("%s%s%s",
		headerStyle.Render("─── "),
		titleStyle.Render(title),
		headerStyle.Render(" "+dashes),
	)
}

// BranchFlow shows the merge direction
// Example: experiment/android-5.1.1_r3/12/foo ====> phonelab/android-5.1.1_r3/develop
func BranchFlow(head, base string) string {
	headStyle := lipgloss.NewStyle().Foreground(BranchColor(head, false)).Bold(true)
	baseStyle := lipgloss.NewStyle().Foreground(BranchColor(base, true)).Bold(true)
	arrowStyle := lipgloss.NewStyle().Foreground(ColorCyan)

	return headStyle.Render(head) + arrowStyle.Render(" ====> ") + baseStyle.Render(base)
}

// Status values for StatusLine
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

// StatusLine renders "[PASS] label detail"
func StatusLine(status, label, detail string) string {
	var style lipgloss.Style
	switch status {
	case StatusPass:
		style = passStyle
	case StatusFail:
		style = failStyle
	default:
		style = skipStyle
	}

	line := style.Render("["+status+"]") + " " + labelStyle.Render(label)
	if detail != "" {
		line += " " + dimStyle.Render(detail)
	}
	return line
}
