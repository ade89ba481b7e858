package tui

import (
	"context"
	"fmt"
	"math"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/table"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/guptarohit/asciigraph"

	awscost "tasnim.dev/mldev/internal/aws/cost"
	"tasnim.dev/mldev/internal/tui/theme"
	"tasnim.dev/mldev/internal/utils"
)

// Messages
type costDataMsg struct{ data *awscost.CostData }
type errMsg struct{ err error }

// CostModel drives the environment cost dashboard.
type CostModel struct {
	client    *awscost.Client
	env       string
	profile   string
	accountID string

	data    *awscost.CostData
	err     error
	loading bool
	spinner spinner.Model
	table   table.Model
	width   int
	height  int

	// Month navigation
	selectedMonth time.Time // zero = current month
}

// NewCostModel creates the cost dashboard model.
func NewCostModel(client *awscost.Client, env, profile, accountID string) CostModel {
	columns := []table.Column{
		{Title: "Service", Width: 45},
		{Title: "Cost", Width: 20},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithWidth(80),
	)
	t.SetStyles(theme.DefaultTableStyles())

	return CostModel{
		client:    client,
		env:       env,
		profile:   profile,
		accountID: accountID,
		loading:   true,
		spinner:   theme.NewSpinner(),
		table:     t,
		width:     80,
		height:    24,
	}
}

func (m CostModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCost())
}

func (m CostModel) fetchCost() tea.Cmd {
	target := m.selectedMonth
	return func() tea.Msg {
		var data *awscost.CostData
		var err error
		if target.IsZero() {
			data, err = m.client.FetchCostData(context.Background())
		} else {
			data, err = m.client.FetchCostDataForMonth(context.Background(), target)
		}
		if err != nil {
			return errMsg{err: err}
		}
		return costDataMsg{data: data}
	}
}

func (m CostModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.fetchCost())
		case "[":
			// Previous month, capped at 12 months back.
			now := time.Now()
			minMonth := time.Date(now.Year()-1, now.Month(), 1, 0, 0, 0, 0, time.UTC)
			current := m.selectedMonth
			if current.IsZero() {
				current = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			}
			prev := current.AddDate(0, -1, 0)
			if !prev.Before(minMonth) {
				m.selectedMonth = prev
				m.loading = true
				m.err = nil
				return m, tea.Batch(m.spinner.Tick, m.fetchCost())
			}
		case "]":
			// Next month, capped at the current month.
			if m.selectedMonth.IsZero() {
				return m, nil
			}
			now := time.Now()
			currentMonthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			next := m.selectedMonth.AddDate(0, 1, 0)
			if next.After(currentMonthStart) {
				m.selectedMonth = time.Time{} // zero = current
			} else {
				m.selectedMonth = next
			}
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.fetchCost())
		}

	case costDataMsg:
		m.data = msg.data
		m.loading = false
		m.table.SetRows(m.buildRows())
		return m, nil

	case errMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.resizeTable()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m CostModel) renderHeader() string {
	profileText := "default"
	if m.profile != "" {
		profileText = m.profile
	}
	parts := []string{
		titleStyle.Render("Environment Cost"),
		"   ",
		metricLabelStyle.Render("env: ") + profileStyle.Render(m.env),
		"   ",
	}
	if m.accountID != "" {
		parts = append(parts,
			metricLabelStyle.Render("account: ")+profileStyle.Render(m.accountID),
			"   ",
		)
	}
	parts = append(parts,
		metricLabelStyle.Render("profile: ")+profileStyle.Render(profileText),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m CostModel) renderMetrics() string {
	// Past months show the final total alone.
	if !m.data.TargetMonth.IsZero() {
		return metricLabelStyle.Render("Total: ") +
			metricValueStyle.Render(utils.Currency(m.data.MTDSpend, m.data.Currency))
	}

	mtdText := metricLabelStyle.Render("MTD: ") + metricValueStyle.Render(utils.Currency(m.data.MTDSpend, m.data.Currency))
	if m.data.LastMonthSpend > 0 {
		direction := "up"
		momStyle := errorStyle
		if m.data.MoMChangePercent < 0 {
			direction = "down"
			momStyle = metricValueStyle
		}
		mtdText += momStyle.Render(fmt.Sprintf("  vs %s last month (%s %.1f%%)",
			utils.Currency(m.data.LastMonthSpend, m.data.Currency),
			direction,
			math.Abs(m.data.MoMChangePercent),
		))
	}

	metrics := lipgloss.JoinHorizontal(
		lipgloss.Top,
		metricLabelStyle.Render("Today: ")+metricValueStyle.Render(utils.Currency(m.data.TodaySpend, m.data.Currency)),
		"        ",
		mtdText,
	)

	forecast := metricLabelStyle.Render("Forecast (month): ") +
		forecastValueStyle.Render(utils.Currency(m.data.ForecastSpend, m.data.Currency))

	return metrics + "\n" + forecast
}

func (m CostModel) renderMonthHeader() string {
	var month time.Time
	if m.selectedMonth.IsZero() {
		month = time.Now()
	} else {
		month = m.selectedMonth
	}
	now := time.Now()
	currentMonthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	label := month.Format("January 2006")
	if time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC).Equal(currentMonthStart) {
		label += " (current)"
	}
	return metricLabelStyle.Render("◀ "+label+" ▶") + "\n"
}

func (m CostModel) View() tea.View {
	header := m.renderHeader()

	var content string
	if m.loading {
		content = dashboardStyle.Render(
			header + "\n\n" + m.spinner.View() + " Fetching cost data...\n",
		)
	} else if m.err != nil {
		content = dashboardStyle.Render(
			header + "\n\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) +
				"\n\n" + helpStyle.Render("Press r to retry • q to quit"),
		)
	} else if m.data == nil {
		content = dashboardStyle.Render(header + "\n\nNo data available.\n")
	} else {
		content = dashboardStyle.Render(
			headerStyle.Render(header) + "\n\n" +
				m.renderMonthHeader() +
				m.renderMetrics() + "\n" +
				m.buildChart() +
				"\n" + metricLabelStyle.Render("Services") + "\n" + m.table.View() + "\n" +
				helpStyle.Render("[ ] month • r refresh • q quit"),
		)
	}

	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

func (m CostModel) resizeTable() CostModel {
	contentWidth := m.width - 4 // dashboardStyle Padding(1,2)
	costColWidth := 20
	borderWidth := 4
	serviceColWidth := contentWidth - costColWidth - borderWidth
	if serviceColWidth < 20 {
		serviceColWidth = 20
	}

	m.table.SetColumns([]table.Column{
		{Title: "Service", Width: serviceColWidth},
		{Title: "Cost", Width: costColWidth},
	})
	m.table.SetWidth(contentWidth)

	tableHeight := m.height - 17 // header+metrics+chart+help
	if tableHeight < 3 {
		tableHeight = 3
	}
	if tableHeight > 15 {
		tableHeight = 15
	}
	m.table.SetHeight(tableHeight)
	return m
}

func (m CostModel) buildChart() string {
	if m.data == nil || len(m.data.DailySpend) < 2 {
		return ""
	}

	values := make([]float64, len(m.data.DailySpend))
	for i, entry := range m.data.DailySpend {
		values[i] = entry.Spend
	}

	contentWidth := m.width - 4 // matches dashboardStyle padding
	yAxisWidth := 10            // y-axis labels, e.g. "  15.67 ┤"
	chartWidth := contentWidth - yAxisWidth

	// Scale the current month's chart to the elapsed fraction of the month
	// so a half-written month does not stretch across the full width.
	if m.data.TargetMonth.IsZero() {
		now := m.data.LastUpdated
		daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		chartWidth = (chartWidth * now.Day()) / daysInMonth
	}
	if chartWidth < 10 {
		chartWidth = 10
	}

	chart := asciigraph.Plot(values,
		asciigraph.Height(5),
		asciigraph.Width(chartWidth),
		asciigraph.Caption("Daily Spend"),
		asciigraph.Precision(2),
	)

	return "\n" + metricLabelStyle.Render(chart) + "\n"
}

func (m CostModel) buildRows() []table.Row {
	if m.data == nil {
		return nil
	}
	rows := make([]table.Row, len(m.data.Services))
	for i, svc := range m.data.Services {
		rows[i] = table.Row{svc.Name, utils.Currency(svc.Cost, m.data.Currency)}
	}
	return rows
}
