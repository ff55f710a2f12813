// Package tui provides the interactive dashboard for live captioning runs.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/itachisky/livecap/internal/api"
	"github.com/itachisky/livecap/internal/config"
	"github.com/itachisky/livecap/internal/runs"
	"github.com/itachisky/livecap/internal/stream"
	"github.com/itachisky/livecap/internal/telemetry"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	alertCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(0, 1)

	safeCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(successColor).
			Padding(0, 1)

	chipStyle = lipgloss.NewStyle().
			Foreground(cyanColor).
			Bold(true)

	chipValueStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	agentOnlineStyle = lipgloss.NewStyle().
				Foreground(successColor).
				Bold(true)

	agentOfflineStyle = lipgloss.NewStyle().
				Foreground(errorColor)
)

// App is the dashboard application model.
type App struct {
	cfg config.Config

	controller *runs.Controller
	mux        *stream.Multiplexer
	collector  *telemetry.Collector
	lagClock   *runs.LagClock

	cards       map[string]*runCard
	order       []string
	selectedIdx int

	input   textinput.Model
	width   int
	height  int
	message string

	streamState stream.ConnState
	stats       *statsPanel
}

func newApp(cfg config.Config) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: start <rtsp-url> [run-name] | stop [run-id]"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	return &App{
		cfg:   cfg,
		cards: make(map[string]*runCard),
		input: ti,
		stats: newStatsPanel(),
	}
}

// Run wires the registry, lifecycle controller, metadata stream, telemetry
// collector and lag clock to a dashboard and blocks until the user quits.
func Run(cfg config.Config) error {
	client := api.NewClient(cfg.APIBase)
	registry := runs.NewRegistry()

	app := newApp(cfg)
	p := tea.NewProgram(app, tea.WithAltScreen())

	surfaces := NewSurfaces(p)
	app.controller = runs.NewController(client, registry, surfaces,
		cfg.SignalingURL, cfg.APIBase, cfg.DefaultPrompt)
	app.mux = stream.New(registry, stream.Config{
		URL:       cfg.APIBase + "/api/runs/metadata-stream",
		AlertMode: cfg.AlertMode,
		OnState: func(s stream.ConnState) {
			p.Send(streamStateMsg{state: s})
		},
	})
	app.collector = telemetry.NewCollector(NewCollectorSink(p), telemetry.Config{
		URL:      cfg.CollectorURL,
		ClientID: "dash-" + uuid.NewString(),
	})
	app.lagClock = runs.NewLagClock(registry, 0)

	_, err := p.Run()

	app.lagClock.Stop()
	app.mux.Close()
	app.collector.Close()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.startServices(),
	)
}

// startServices brings the long-lived connections up and restores
// server-reported runs, once the program is processing messages.
func (a *App) startServices() tea.Cmd {
	return func() tea.Msg {
		a.mux.Init()
		a.collector.Connect()
		a.lagClock.Start()

		restored, err := a.controller.Restore()
		return restoredMsg{count: len(restored), err: err}
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "up":
			if a.selectedIdx > 0 {
				a.selectedIdx--
			}

		case "down":
			if a.selectedIdx < len(a.order)-1 {
				a.selectedIdx++
			}

		case "enter":
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4

	case restoredMsg:
		if msg.err == nil && msg.count > 0 {
			a.message = fmt.Sprintf("Restored %d active run(s)", msg.count)
		}

	case cardAddedMsg:
		if _, exists := a.cards[msg.run.RunID]; !exists {
			a.order = append(a.order, msg.run.RunID)
		}
		a.cards[msg.run.RunID] = newRunCard(msg.run)
		a.selectedIdx = len(a.order) - 1

	case cardRemovedMsg:
		a.removeCard(msg.runID)

	case captionMsg:
		if c := a.cards[msg.runID]; c != nil {
			c.caption = msg.text
		}

	case metricsMsg:
		if c := a.cards[msg.runID]; c != nil {
			c.chips = msg.chips
		}

	case timestampMsg:
		if c := a.cards[msg.runID]; c != nil {
			c.timestamp = msg.label
		}

	case lagMsg:
		if c := a.cards[msg.runID]; c != nil {
			c.lag = msg.label
		}

	case alertMsg:
		if c := a.cards[msg.runID]; c != nil {
			c.alert = msg.state
		}

	case videoMsg:
		if c := a.cards[msg.runID]; c != nil {
			c.videoURL = msg.url
		}

	case statSampleMsg:
		a.stats.push(msg.series, msg.value)

	case statLabelMsg:
		a.stats.labels[msg.key] = msg.label

	case collectorStatusMsg:
		a.stats.connected = msg.connected

	case streamStateMsg:
		a.streamState = msg.state

	case startResultMsg:
		if msg.err != nil {
			a.message = "Start failed: " + msg.err.Error()
		} else {
			a.message = fmt.Sprintf("Latest Run: (%s)", msg.runID)
		}

	case stopResultMsg:
		if msg.err != nil {
			// Re-arm the stop affordance for a manual retry.
			if c := a.cards[msg.runID]; c != nil {
				c.stopping = false
			}
			a.message = "Stop failed: " + msg.err.Error()
		} else if len(a.cards) == 0 {
			a.message = "Pipeline stopped"
		} else {
			a.message = fmt.Sprintf("Stopped: %s", msg.runID)
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) removeCard(runID string) {
	delete(a.cards, runID)
	for i, id := range a.order {
		if id == runID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	if a.selectedIdx >= len(a.order) {
		a.selectedIdx = max(0, len(a.order)-1)
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "start":
		rtsp := a.cfg.DefaultRTSP
		name := ""
		if len(args) > 0 {
			rtsp = args[0]
		}
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		if rtsp == "" {
			a.message = "Usage: start <rtsp-url> [run-name]"
			return nil
		}
		a.message = "Starting pipeline..."
		return func() tea.Msg {
			run, err := a.controller.Create(runs.StartConfig{
				RTSPURL: rtsp,
				RunName: name,
			})
			return startResultMsg{runID: run.RunID, err: err}
		}

	case "stop":
		runID := ""
		if len(args) > 0 {
			runID = args[0]
		} else if a.selectedIdx < len(a.order) {
			runID = a.order[a.selectedIdx]
		}
		c := a.cards[runID]
		if c == nil {
			a.message = "No run selected"
			return nil
		}
		if c.stopping {
			return nil
		}
		c.stopping = true
		a.message = fmt.Sprintf("Stopping: %s...", runID)
		return func() tea.Msg {
			return stopResultMsg{runID: runID, err: a.controller.Stop(runID)}
		}

	case "q", "quit", "exit":
		return tea.Quit

	default:
		a.message = fmt.Sprintf("Unknown: %s (try: start, stop, quit)", cmd)
		return nil
	}
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	streamStatus := agentOfflineStyle.Render("○ stream " + a.streamState.String())
	if a.streamState == stream.StateOpen {
		streamStatus = agentOnlineStyle.Render("● stream")
	}

	header := titleStyle.Render("LIVECAP — Live Video Captioning")
	header += "  " + streamStatus
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	panelWidth := a.width - 2
	if panelWidth < 40 {
		panelWidth = 40
	}

	b.WriteString(a.stats.render(panelWidth) + "\n")

	if len(a.order) == 0 {
		b.WriteString("\n" + helpStyle.Render("  Start a pipeline to see video streams here") + "\n")
	}
	for i, id := range a.order {
		if c := a.cards[id]; c != nil {
			b.WriteString(c.render(panelWidth, i == a.selectedIdx) + "\n")
		}
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Start failed") || strings.HasPrefix(a.message, "Stop failed") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	}
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n")

	status := fmt.Sprintf(" Runs: %d | ↑↓:select | start <rtsp> [name] | stop [run-id] | Ctrl+C:quit", len(a.order))
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(status))

	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type restoredMsg struct {
	count int
	err   error
}

type startResultMsg struct {
	runID string
	err   error
}

type stopResultMsg struct {
	runID string
	err   error
}
