package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette - coherent with charmbracelet style
var (
	Primary   = lipgloss.Color("#7D56F4") // Purple (charmbracelet brand)
	Secondary = lipgloss.Color("#FF79C6") // Pink accent
	Success   = lipgloss.Color("#50FA7B") // Green
	Warning   = lipgloss.Color("#FFB86C") // Orange
	Error     = lipgloss.Color("#FF5555") // Red
	Muted     = lipgloss.Color("#6272A4") // Muted blue-gray
	Text      = lipgloss.Color("#F8F8F2") // Light text
	Subtle    = lipgloss.Color("#44475A") // Dark background accent
)

// Base styles
var (
	// Title style for headers
	Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFDF5")).
		Background(Primary).
		Padding(0, 1).
		Bold(true)

	NormalText = lipgloss.NewStyle().
			Foreground(Text)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	SuccessText = lipgloss.NewStyle().
			Foreground(Success)

	WarningText = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error)

	Spinner = lipgloss.NewStyle().
		Foreground(Primary)
)

// Symbols
var (
	CheckMark = lipgloss.NewStyle().Foreground(Success).SetString("✓")
	CrossMark = lipgloss.NewStyle().Foreground(Error).SetString("✗")
)

// Version type styles for catalog listings
var (
	VersionRelease = lipgloss.NewStyle().
			Foreground(Success)

	VersionSnapshot = lipgloss.NewStyle().
			Foreground(Warning)

	VersionOld = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	VersionLoader = lipgloss.NewStyle().
			Foreground(Secondary)

	InstalledBadge = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)
)

// VersionTypeStyle returns the style of an upstream version type
func VersionTypeStyle(kind string) lipgloss.Style {
	switch kind {
	case "release":
		return VersionRelease
	case "snapshot":
		return VersionSnapshot
	case "old_alpha", "old_beta":
		return VersionOld
	default:
		return VersionLoader
	}
}

// FormatInstalled returns a styled "installed" indicator
func FormatInstalled(installed bool) string {
	if !installed {
		return ""
	}
	return InstalledBadge.Render("installed")
}

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return CheckMark.String() + " " + SuccessText.Render(msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return CrossMark.String() + " " + ErrorText.Render(msg)
}

// FormatWarning formats a warning message
func FormatWarning(msg string) string {
	return WarningText.Render("! " + msg)
}
