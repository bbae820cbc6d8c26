// Package tui renders job progress and syllabus trees in the terminal.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/syllabus-go/internal/progress"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Accent  lipgloss.Color
}

// DefaultTheme provides default colors.
var DefaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Accent:  lipgloss.Color("#D7AF5F"), // amber
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

// styleFor picks the status style for a progress status.
func (t Theme) styleFor(s progress.Status) lipgloss.Style {
	switch s {
	case progress.StatusCompleted:
		return t.completedStyle()
	case progress.StatusError:
		return t.errorStyle()
	default:
		return t.statusStyle()
	}
}
