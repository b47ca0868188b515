package cli

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	DoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	PendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	DangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)
