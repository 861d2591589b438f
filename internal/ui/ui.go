// Package ui holds the styled terminal output for the CLI.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary = lipgloss.Color("#22d3ee") // Cyan
	Success = lipgloss.Color("#10B981") // Emerald
	Warning = lipgloss.Color("#F59E0B") // Amber
	Error   = lipgloss.Color("#EF4444") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	successStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	mutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	roomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 2)
)

// PrintError prints a styled error line.
func PrintError(msg string) {
	fmt.Println(errorStyle.Render("✗ " + msg))
}

// PrintSuccess prints a styled success line.
func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

// PrintWarning prints a styled warning line.
func PrintWarning(msg string) {
	fmt.Println(warningStyle.Render("! " + msg))
}

// PrintMuted prints a dim informational line.
func PrintMuted(msg string) {
	fmt.Println(mutedStyle.Render(msg))
}

// RenderRoomBanner prints the room the participant is rendezvousing in.
func RenderRoomBanner(room, role string) {
	content := titleStyle.Render("Room "+room) + "\n" +
		mutedStyle.Render("role: "+role)
	fmt.Println(roomBoxStyle.Render(content))
}

// PrintState prints a negotiation state change.
func PrintState(state string) {
	fmt.Println(mutedStyle.Render("state → ") + titleStyle.Render(state))
}
