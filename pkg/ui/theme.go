package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Avarel/bvr/pkg/config"
)

type styles struct {
	status   lipgloss.Style
	accent   lipgloss.Style
	lineNo   lipgloss.Style
	selected lipgloss.Style
	bookmark lipgloss.Style
	chip     lipgloss.Style
	chipOff  lipgloss.Style
	errText  lipgloss.Style
	prompt   lipgloss.Style
}

func newStyles(t config.Theme) styles {
	return styles{
		status: lipgloss.NewStyle().
			Background(lipgloss.Color(t.StatusBg)).
			Foreground(lipgloss.Color(t.StatusFg)),
		accent:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)).Bold(true),
		lineNo:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.LineNoFg)),
		selected: lipgloss.NewStyle().Reverse(true),
		bookmark: lipgloss.NewStyle().Foreground(lipgloss.Color(t.MatchFg)).Bold(true),
		chip: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.MatchFg)).
			Background(lipgloss.Color(t.StatusBg)),
		chipOff: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.LineNoFg)).
			Background(lipgloss.Color(t.StatusBg)),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.ErrorFg)).Bold(true),
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
	}
}
