package progress

import (
	"fmt"

	"github.com/bnema/craftctl/internal/ui/styles"
)

// PrintStep prints a step with the appropriate icon and styling
func PrintStep(state State, message string) {
	fmt.Println(FormatStep(state, message))
}

// PrintSuccess prints a completed step
func PrintSuccess(message string) {
	PrintStep(StateComplete, message)
}

// PrintError prints an error step
func PrintError(message string) {
	PrintStep(StateError, message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println(FormatWarning(message))
}

// PrintTitle prints a title/header
func PrintTitle(title string) {
	style := styles.NormalText.Bold(true)
	fmt.Printf("%s\n\n", style.Render(title))
}

// PrintDetail prints an indented detail line
func PrintDetail(detail string) {
	fmt.Printf("      %s\n", styles.MutedText.Render(detail))
}

// FormatStep returns a formatted step string
func FormatStep(state State, message string) string {
	icon := StyledIcon(state)
	textStyle := StepStyle(state)
	return fmt.Sprintf("  %s %s", icon, textStyle.Render(message))
}

// FormatWarning returns a formatted warning string
func FormatWarning(message string) string {
	icons := GetIcons()
	icon := IconStyleWarning.Render(icons.Warning)
	return fmt.Sprintf("  %s %s", icon, styles.WarningText.Render(message))
}

// FormatProgressLine formats a line like "Vanilla 1.16.5 40%: Downloading assets"
func FormatProgressLine(name, phase string, percent float64) string {
	icons := GetIcons()
	icon := IconStyleSpinner.Render(icons.Spinner)
	pct := styles.MutedText.Render(fmt.Sprintf("%3.0f%%", percent))
	line := fmt.Sprintf("  %s %s %s", icon, styles.NormalText.Bold(true).Render(name), pct)
	if phase != "" {
		line += ": " + phase
	}
	return line
}
