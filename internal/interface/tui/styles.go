package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("120"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")) // Lighter gray for dark terminals

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)
