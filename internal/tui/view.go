package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// render draws the full dashboard.
func (m Model) render() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderRunSection())
	b.WriteString("\n")
	b.WriteString(m.renderStepSection())
	b.WriteString("\n")
	b.WriteString(m.renderTrafficSection())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	title := headerStyle.Render("go-traci-kernel")
	elapsed := titleStyle.Render(formatDuration(m.Elapsed()))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", elapsed)
}

func (m Model) renderRunSection() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Run"))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("run id", m.data.RunID))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("backend", m.data.Backend))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("network", m.data.ConfigFile))
	b.WriteString("\n")

	starts := valueStyle.Render(fmt.Sprintf("%d", m.data.EngineStarts))
	retries := RetryStyle(m.data.StartRetries).Render(fmt.Sprintf("%d", m.data.StartRetries))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("engine starts:"),
		starts,
		unitStyle.Render("  retries "),
		retries,
	))
	return b.String()
}

func (m Model) renderStepSection() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Stepping"))
	b.WriteString("\n")

	if progress := m.StepProgress(); progress >= 0 {
		b.WriteString(RenderKeyValue("progress",
			fmt.Sprintf("%s / %s", formatNumber(m.data.Steps), formatNumber(int64(m.data.TargetSteps)))))
		b.WriteString("\n")
		b.WriteString(RenderProgressBar(progress, 40))
		b.WriteString("\n")
	} else {
		b.WriteString(RenderKeyValue("steps", formatNumber(m.data.Steps)))
		b.WriteString("\n")
	}

	b.WriteString(RenderKeyValue("sim clock", formatSimTime(m.data.SimTime)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("step rate", formatRate(m.data.StepRate)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("step latency",
		fmt.Sprintf("p50 %s  p95 %s  p99 %s",
			formatMs(m.data.StepP50), formatMs(m.data.StepP95), formatMs(m.data.StepP99))))
	return b.String()
}

func (m Model) renderTrafficSection() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Traffic"))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("vehicles", fmt.Sprintf("%d", m.data.ActiveVehicles)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("departed", formatNumber(m.data.Departed)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("arrived", formatNumber(m.data.Arrived)))
	b.WriteString("\n")

	collisions := CollisionStyle(m.data.Collisions).Render(formatNumber(m.data.Collisions))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("collisions:"),
		collisions,
		unitStyle.Render("  teleports "),
		valueStyle.Render(formatNumber(m.data.Teleports)),
	))
	return b.String()
}

func (m Model) renderFooter() string {
	metrics := ""
	if m.data.MetricsAddr != "" {
		metrics = "metrics " + m.data.MetricsAddr + "  "
	}
	return footerStyle.Render(metrics + "q quit  r refresh")
}
