package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/itachisky/livecap/internal/telemetry"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// statsPanel holds the system telemetry read model: three rolling series
// plus the point-in-time labels written by the collector.
type statsPanel struct {
	cpu *telemetry.Series
	ram *telemetry.Series
	gpu *telemetry.Series

	labels    map[string]string
	connected bool
}

func newStatsPanel() *statsPanel {
	return &statsPanel{
		cpu:    telemetry.NewSeries(0),
		ram:    telemetry.NewSeries(0),
		gpu:    telemetry.NewSeries(0),
		labels: make(map[string]string),
	}
}

func (s *statsPanel) push(series string, v float64) {
	switch series {
	case telemetry.SeriesCPU:
		s.cpu.Push(v)
	case telemetry.SeriesRAM:
		s.ram.Push(v)
	case telemetry.SeriesGPU:
		s.gpu.Push(v)
	}
}

func (s *statsPanel) render(width int) string {
	var b strings.Builder

	status := agentOfflineStyle.Render("○ collector")
	if s.connected {
		status = agentOnlineStyle.Render("● collector")
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("System") + "  " + status + "\n")

	sparkWidth := width - 24
	if sparkWidth < 10 {
		sparkWidth = 10
	}
	b.WriteString(statLine("CPU", s.labels["cpu"], s.cpu, sparkWidth) + "\n")
	b.WriteString(statLine("RAM", s.labels["ram"], s.ram, sparkWidth) + "\n")
	b.WriteString(statLine("GPU", s.labels["gpu"], s.gpu, sparkWidth))

	var details []string
	for _, key := range []string{"engines", "freq", "power", "temp"} {
		if s.labels[key] != "" {
			details = append(details, s.labels[key])
		}
	}
	if len(details) > 0 {
		b.WriteString("\n" + mutedStyle.Render(strings.Join(details, "  ")))
	}

	return panelStyle.Width(width).Render(b.String())
}

func statLine(name, label string, series *telemetry.Series, width int) string {
	if label == "" {
		label = "—"
	}
	return fmt.Sprintf("%-4s %7s %s", name, label, sparkline(series.Values(), width))
}

// sparkline renders the series as block runes scaled 0-100.
func sparkline(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	var b strings.Builder
	for _, v := range values {
		idx := int(v / 100 * float64(len(sparkRunes)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
