package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/itachisky/livecap/internal/runs"
	"github.com/itachisky/livecap/internal/stream"
)

// Sender delivers messages into the running program. *tea.Program satisfies
// it; tests use a capturing fake.
type Sender interface {
	Send(tea.Msg)
}

// Surfaces allocates display surfaces backed by the dashboard. Each surface
// only carries its run id and forwards updates as messages; the model owns
// the rendered card state and is looked up by id on every update, so a
// surface can never outlive its card.
type Surfaces struct {
	p Sender
}

// NewSurfaces creates the dashboard surface factory.
func NewSurfaces(p Sender) *Surfaces {
	return &Surfaces{p: p}
}

// Create implements runs.SurfaceFactory.
func (s *Surfaces) Create(run runs.Run) runs.Surface {
	s.p.Send(cardAddedMsg{run: run})
	return &programSurface{p: s.p, runID: run.RunID}
}

// Release implements runs.SurfaceFactory.
func (s *Surfaces) Release(runID string) {
	s.p.Send(cardRemovedMsg{runID: runID})
}

type programSurface struct {
	p     Sender
	runID string
}

func (ps *programSurface) SetCaption(text string) {
	ps.p.Send(captionMsg{runID: ps.runID, text: text})
}

func (ps *programSurface) SetMetrics(chips runs.MetricChips) {
	ps.p.Send(metricsMsg{runID: ps.runID, chips: chips})
}

func (ps *programSurface) SetTimestamp(label string) {
	ps.p.Send(timestampMsg{runID: ps.runID, label: label})
}

func (ps *programSurface) SetLag(label string) {
	ps.p.Send(lagMsg{runID: ps.runID, label: label})
}

func (ps *programSurface) SetAlert(state runs.AlertState) {
	ps.p.Send(alertMsg{runID: ps.runID, state: state})
}

func (ps *programSurface) SetVideoURL(url string) {
	ps.p.Send(videoMsg{runID: ps.runID, url: url})
}

// collectorSink projects telemetry into the stats panel.
type collectorSink struct {
	p Sender
}

// NewCollectorSink creates a telemetry sink that feeds the dashboard.
func NewCollectorSink(p Sender) *collectorSink {
	return &collectorSink{p: p}
}

func (cs *collectorSink) PushSample(series string, v float64) {
	cs.p.Send(statSampleMsg{series: series, value: v})
}

func (cs *collectorSink) SetCPU(label string)        { cs.p.Send(statLabelMsg{key: "cpu", label: label}) }
func (cs *collectorSink) SetRAM(label string)        { cs.p.Send(statLabelMsg{key: "ram", label: label}) }
func (cs *collectorSink) SetGPU(label string)        { cs.p.Send(statLabelMsg{key: "gpu", label: label}) }
func (cs *collectorSink) SetGPUEngines(label string) { cs.p.Send(statLabelMsg{key: "engines", label: label}) }
func (cs *collectorSink) SetGPUFreq(label string)    { cs.p.Send(statLabelMsg{key: "freq", label: label}) }
func (cs *collectorSink) SetGPUPower(label string)   { cs.p.Send(statLabelMsg{key: "power", label: label}) }
func (cs *collectorSink) SetGPUTemp(label string)    { cs.p.Send(statLabelMsg{key: "temp", label: label}) }

func (cs *collectorSink) SetStatus(connected bool) {
	cs.p.Send(collectorStatusMsg{connected: connected})
}

// Messages from the background services into the model.

type cardAddedMsg struct {
	run runs.Run
}

type cardRemovedMsg struct {
	runID string
}

type captionMsg struct {
	runID string
	text  string
}

type metricsMsg struct {
	runID string
	chips runs.MetricChips
}

type timestampMsg struct {
	runID string
	label string
}

type lagMsg struct {
	runID string
	label string
}

type alertMsg struct {
	runID string
	state runs.AlertState
}

type videoMsg struct {
	runID string
	url   string
}

type statSampleMsg struct {
	series string
	value  float64
}

type statLabelMsg struct {
	key   string
	label string
}

type collectorStatusMsg struct {
	connected bool
}

type streamStateMsg struct {
	state stream.ConnState
}
