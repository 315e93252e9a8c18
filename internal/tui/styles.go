package tui

import (
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(11)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	onStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5fdc8c"))

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

// severityColors mirror the status line palette of the browser dashboard.
var severityColors = map[model.Severity]lipgloss.Color{
	model.SeveritySuccess: lipgloss.Color("#5fdc8c"),
	model.SeverityError:   lipgloss.Color("#dc5f5f"),
	model.SeverityWarning: lipgloss.Color("#ffc107"),
	model.SeverityInfo:    lipgloss.Color("#b9e6fe"),
}

func statusStyle(sev model.Severity, dimmed bool) lipgloss.Style {
	c, ok := severityColors[sev]
	if !ok {
		c = severityColors[model.SeverityInfo]
	}
	st := lipgloss.NewStyle().Foreground(c)
	if dimmed {
		st = st.Faint(true)
	} else {
		st = st.Bold(true)
	}
	return st
}

var connectionColors = map[model.ConnectionState]lipgloss.Color{
	model.Open:         lipgloss.Color("#5fdc8c"),
	model.Connecting:   lipgloss.Color("#ffc107"),
	model.Closing:      lipgloss.Color("#ffc107"),
	model.Disconnected: lipgloss.Color("#dc5f5f"),
}
