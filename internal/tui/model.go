package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// DashboardData is one refresh worth of run state.
type DashboardData struct {
	RunID       string
	Backend     string
	ConfigFile  string
	MetricsAddr string

	SimTime     float64
	Steps       int64
	TargetSteps int
	StepRate    float64

	StepP50 time.Duration
	StepP95 time.Duration
	StepP99 time.Duration

	ActiveVehicles int
	Departed       int64
	Arrived        int64
	Collisions     int64
	Teleports      int64

	EngineStarts int64
	StartRetries int64
}

// StatsSource provides the dashboard with fresh run state on each tick.
type StatsSource interface {
	Dashboard() DashboardData
}

// Config holds TUI configuration.
type Config struct {
	Source StatsSource
}

// Model represents the TUI state.
type Model struct {
	source StatsSource

	data       DashboardData
	startTime  time.Time
	lastUpdate time.Time

	width    int
	height   int
	quitting bool
}

// New creates a new dashboard model.
func New(cfg Config) Model {
	return Model{
		source:     cfg.Source,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
		width:      80,
		height:     24,
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			m.data = m.source.Dashboard()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// StepProgress returns progress toward the step target (0.0 to 1.0), or -1
// for an unbounded run.
func (m Model) StepProgress() float64 {
	if m.data.TargetSteps <= 0 {
		return -1
	}
	return float64(m.data.Steps) / float64(m.data.TargetSteps)
}

// SendQuit tells a running dashboard to exit.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatRate formats a rate with appropriate precision.
func formatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// formatMs formats a duration as milliseconds.
func formatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// formatSimTime formats the engine clock in seconds.
func formatSimTime(t float64) string {
	return fmt.Sprintf("%.1fs", t)
}
