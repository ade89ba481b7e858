package tui

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	awsec2 "tasnim.dev/mldev/internal/aws/ec2"
	"tasnim.dev/mldev/internal/tui/theme"
	"tasnim.dev/mldev/internal/utils"
)

type statusMsg struct{ status *awsec2.EnvironmentStatus }
type refreshTickMsg time.Time

// StatusModel drives the environment status dashboard: one panel per
// resource (spot request, instance, volume, snapshot), refreshed on a
// timer.
type StatusModel struct {
	client    *awsec2.Client
	env       string
	profile   string
	region    string
	accountID string
	refresh   time.Duration

	status      *awsec2.EnvironmentStatus
	err         error
	loading     bool
	spinner     spinner.Model
	width       int
	height      int
	lastUpdated time.Time
}

// NewStatusModel creates the status dashboard model.
func NewStatusModel(client *awsec2.Client, env, profile, region, accountID string, refresh time.Duration) StatusModel {
	return StatusModel{
		client:    client,
		env:       env,
		profile:   profile,
		region:    region,
		accountID: accountID,
		refresh:   refresh,
		loading:   true,
		spinner:   theme.NewSpinner(),
		width:     80,
		height:    24,
	}
}

func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStatus(), m.scheduleRefresh())
}

func (m StatusModel) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := m.client.Status(context.Background(), m.env)
		if err != nil {
			return errMsg{err: err}
		}
		return statusMsg{status: status}
	}
}

func (m StatusModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.fetchStatus())
		}

	case statusMsg:
		m.status = msg.status
		m.err = nil
		m.loading = false
		m.lastUpdated = time.Now()
		return m, nil

	case errMsg:
		// Keep the stale panels visible; the error lands in the status bar.
		m.err = msg.err
		m.loading = false
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.fetchStatus(), m.scheduleRefresh())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m StatusModel) renderHeader() string {
	profileText := "default"
	if m.profile != "" {
		profileText = m.profile
	}
	parts := []string{
		titleStyle.Render("Environment Status"),
		"   ",
		metricLabelStyle.Render("env: ") + profileStyle.Render(m.env),
		"   ",
	}
	if m.region != "" {
		parts = append(parts,
			metricLabelStyle.Render("region: ")+profileStyle.Render(m.region),
			"   ",
		)
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

func (m StatusModel) View() tea.View {
	header := m.renderHeader()

	var content string
	if m.status == nil && m.loading {
		content = dashboardStyle.Render(
			header + "\n\n" + m.spinner.View() + " Fetching environment status...\n",
		)
	} else if m.status == nil && m.err != nil {
		content = dashboardStyle.Render(
			header + "\n\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) +
				"\n\n" + helpStyle.Render("Press r to retry • q to quit"),
		)
	} else {
		top := lipgloss.JoinHorizontal(lipgloss.Top, m.requestPanel(), m.instancePanel())
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, m.volumePanel(), m.snapshotPanel())
		content = dashboardStyle.Render(
			headerStyle.Render(header) + "\n\n" +
				top + "\n" + bottom + "\n" +
				m.renderStatusBar() +
				helpStyle.Render("r refresh • q quit"),
		)
	}

	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

func (m StatusModel) renderStatusBar() string {
	var bar string
	if m.loading {
		bar = m.spinner.View() + " refreshing"
	} else {
		bar = metricLabelStyle.Render("updated " + utils.TimeOrDash(m.lastUpdated, "15:04:05"))
	}
	if m.err != nil {
		bar += "  " + errorStyle.Render(fmt.Sprintf("refresh failed: %v", m.err))
	}
	return statusBarStyle.Render(bar) + "\n"
}

func (m StatusModel) panelWidth() int {
	w := (m.width - 6) / 2 // dashboard padding plus the gap between panels
	if w < 30 {
		w = 30
	}
	return w
}

func (m StatusModel) panel(title, body string) string {
	return panelStyle.Width(m.panelWidth()).Render(
		panelTitleStyle.Render(title) + "\n" + body,
	)
}

func (m StatusModel) emptyPanel(title, message string) string {
	return m.panel(title, metricLabelStyle.Render(message)+"\n")
}

func (m StatusModel) requestPanel() string {
	req := m.status.Request
	if req == nil {
		return m.emptyPanel("Spot Request", "no spot request")
	}

	d := utils.NewDetailBuilder(9, metricLabelStyle)
	d.Row("ID", req.ID)
	d.Row("State", theme.RenderStatus(req.State))
	d.Row("Status", utils.OrDash(req.StatusCode))
	d.Row("Created", utils.TimeOrDash(req.CreateTime, utils.DateTime))
	return m.panel("Spot Request", d.String())
}

func (m StatusModel) instancePanel() string {
	inst := m.status.Instance
	if inst == nil {
		return m.emptyPanel("Instance", "no instance")
	}

	d := utils.NewDetailBuilder(9, metricLabelStyle)
	d.Row("ID", inst.ID)
	d.Row("State", theme.RenderStatus(inst.State))
	d.Row("Type", inst.InstanceType)
	d.Row("Zone", utils.OrDash(inst.AvailabilityZone))
	d.Row("Address", utils.OrDash(inst.PublicAddress()))
	d.Row("Launched", utils.TimeOrDash(inst.LaunchTime, utils.DateTime))
	return m.panel("Instance", d.String())
}

func (m StatusModel) volumePanel() string {
	vol := m.status.Volume
	if vol == nil {
		return m.emptyPanel("Volume", "no volume")
	}

	d := utils.NewDetailBuilder(9, metricLabelStyle)
	d.Row("ID", vol.ID)
	d.Row("State", theme.RenderStatus(vol.State))
	if vol.AttachmentState != "" {
		d.Row("Attach", theme.RenderStatus(vol.AttachmentState))
	}
	d.Row("Size", utils.GiB(vol.SizeGiB))
	d.Row("Device", utils.OrDash(vol.Device))
	d.Row("Instance", utils.OrDash(vol.InstanceID))
	return m.panel("Volume", d.String())
}

func (m StatusModel) snapshotPanel() string {
	snap := m.status.Snapshot
	if snap == nil {
		return m.emptyPanel("Snapshot", "no snapshot")
	}

	d := utils.NewDetailBuilder(9, metricLabelStyle)
	d.Row("ID", snap.ID)
	d.Row("State", theme.RenderStatus(snap.State))
	d.Row("Progress", utils.OrDash(snap.Progress))
	d.Row("Started", utils.TimeOrDash(snap.StartTime, utils.DateTime))
	return m.panel("Snapshot", d.String())
}
