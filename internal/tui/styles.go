package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle    = lipgloss.NewStyle().Bold(true)
	edgeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	modeStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("82")).Padding(0, 1)
	modalStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99")).Padding(1, 2)
)
