package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/itachisky/livecap/internal/runs"
)

// runCard is the rendered state of one run. It is mutated only by the
// model's Update loop; background services address it by run id through
// messages.
type runCard struct {
	run runs.Run

	caption   string
	chips     runs.MetricChips
	timestamp string
	lag       string
	alert     runs.AlertState
	videoURL  string
	stopping  bool
}

func newRunCard(run runs.Run) *runCard {
	return &runCard{
		run:       run,
		caption:   "Waiting for metadata...",
		chips:     runs.MetricChips{TTFT: "—", TPOT: "—", Throughput: "—"},
		timestamp: "—",
		lag:       "—",
	}
}

func (c *runCard) render(width int, selected bool) string {
	border := panelStyle
	switch c.alert {
	case runs.AlertActive:
		border = alertCardStyle
	case runs.AlertSafe:
		border = safeCardStyle
	}
	if selected {
		border = border.Copy().BorderForeground(primaryColor)
	}

	var b strings.Builder

	name := lipgloss.NewStyle().Bold(true).Render(c.run.DisplayName())
	device := chipStyle.Render(c.run.Device())
	model := chipStyle.Render(c.run.ModelName)
	header := fmt.Sprintf("● %s  %s %s", name, device, model)
	if c.run.DetectionEnabled && c.run.DetectionModelName != "" {
		header += " " + chipStyle.Render(c.run.DetectionModelName)
	}
	if c.stopping {
		header += "  " + lipgloss.NewStyle().Foreground(warningColor).Render("stopping…")
	}
	b.WriteString(header + "\n")

	chips := fmt.Sprintf("TTFT %s  TPOT %s  Throughput %s  Lag %s",
		chipValueStyle.Render(c.chips.TTFT),
		chipValueStyle.Render(c.chips.TPOT),
		chipValueStyle.Render(c.chips.Throughput),
		chipValueStyle.Render(c.lag))
	b.WriteString(chips + "  " + mutedStyle.Render(c.timestamp) + "\n")

	b.WriteString(c.caption + "\n")

	if c.videoURL != "" {
		b.WriteString(mutedStyle.Render("Video: "+c.videoURL) + "\n")
	}
	detail := fmt.Sprintf("Pipeline: %s | RTSP: %s | Max Tokens: %d",
		orNA(c.run.PipelineName), orNA(c.run.RTSPURL), c.run.MaxTokens)
	b.WriteString(mutedStyle.Render(detail))

	return border.Width(width).Render(b.String())
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
