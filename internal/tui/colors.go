package tui

import "github.com/charmbracelet/lipgloss"

// Semantic state colors, carried over from the full dashboard's palette
// for the handful of states a one-shot progress view needs.
var (
	colorDownloading = lipgloss.Color("#50fa7b")
	colorPaused      = lipgloss.Color("#ffb86c")
	colorDone        = lipgloss.Color("#bd93f9")
	colorError       = lipgloss.Color("#ff5555")
	colorMuted       = lipgloss.Color("#a9b1d6")

	progressStart = "#ff79c6"
	progressEnd   = "#bd93f9"
)

var (
	styleID     = lipgloss.NewStyle().Foreground(colorMuted)
	styleName   = lipgloss.NewStyle().Bold(true)
	styleDone   = lipgloss.NewStyle().Foreground(colorDone)
	styleError  = lipgloss.NewStyle().Foreground(colorError)
	stylePaused = lipgloss.NewStyle().Foreground(colorPaused)
	styleDim    = lipgloss.NewStyle().Foreground(colorMuted)
)

func stateColor(status string) lipgloss.Color {
	switch status {
	case "completed":
		return colorDone
	case "failed", "cancelled":
		return colorError
	case "paused":
		return colorPaused
	default:
		return colorDownloading
	}
}
