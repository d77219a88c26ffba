// Package styles holds the lipgloss styles shared by the dashboard and the
// CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/fspec/internal/project"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	// Work unit status colors
	StatusBacklog      = lipgloss.Color("#9CA3AF") // Gray
	StatusSpecifying   = lipgloss.Color("#60A5FA") // Blue
	StatusTesting      = lipgloss.Color("#FBBF24") // Yellow
	StatusImplementing = lipgloss.Color("#F472B6") // Pink
	StatusValidating   = lipgloss.Color("#FB923C") // Orange
	StatusDone         = lipgloss.Color("#10B981") // Green
	StatusBlocked      = lipgloss.Color("#F87171") // Red

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1)

	// Board column
	Column = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	ColumnTitle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	CardID = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor)

	CardEpic = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Footer / status bar
	StatusBar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)
)

// StatusColor returns the color for a work unit status.
func StatusColor(status project.Status) lipgloss.Color {
	switch status {
	case project.StatusBacklog:
		return StatusBacklog
	case project.StatusSpecifying:
		return StatusSpecifying
	case project.StatusTesting:
		return StatusTesting
	case project.StatusImplementing:
		return StatusImplementing
	case project.StatusValidating:
		return StatusValidating
	case project.StatusDone:
		return StatusDone
	case project.StatusBlocked:
		return StatusBlocked
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a work unit status.
func StatusIcon(status project.Status) string {
	switch status {
	case project.StatusBacklog:
		return "○"
	case project.StatusSpecifying:
		return "✎"
	case project.StatusTesting:
		return "◆"
	case project.StatusImplementing:
		return "●"
	case project.StatusValidating:
		return "◎"
	case project.StatusDone:
		return "✓"
	case project.StatusBlocked:
		return "✗"
	default:
		return "●"
	}
}
