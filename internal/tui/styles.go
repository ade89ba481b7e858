package tui

import (
	"charm.land/lipgloss/v2"

	"tasnim.dev/mldev/internal/tui/theme"
)

var (
	// Dashboard styles composed from the shared theme
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary)

	headerStyle = theme.HeaderStyle

	metricLabelStyle = theme.MutedStyle

	metricValueStyle = theme.SuccessStyle

	forecastValueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.Warning)

	profileStyle = theme.ProfileStyle

	helpStyle = theme.HelpStyle

	errorStyle = theme.ErrorStyle

	dashboardStyle = theme.DashboardStyle

	panelStyle = theme.DashboardBoxStyle

	panelTitleStyle = theme.DashboardTitleStyle

	statusBarStyle = theme.StatusBarStyle
)
