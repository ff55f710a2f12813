// Package telemetry maintains the system-metrics collector connection and
// projects tagged samples into display-ready values.
package telemetry

// DefaultWindow is the rolling-window length of a chart series.
const DefaultWindow = 60

// Series is a bounded FIFO rolling window of samples. Pushing beyond the
// window evicts the oldest sample, bounding memory and rendering cost
// regardless of connection uptime.
type Series struct {
	window int
	values []float64
}

// NewSeries creates a series with the given window. A window of 0 uses
// DefaultWindow.
func NewSeries(window int) *Series {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Series{window: window}
}

// Push appends a sample, evicting the oldest one when the window is full.
func (s *Series) Push(v float64) {
	s.values = append(s.values, v)
	if len(s.values) > s.window {
		s.values = s.values[1:]
	}
}

// Values returns the retained samples, oldest first. The returned slice is
// a copy.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of retained samples.
func (s *Series) Len() int {
	return len(s.values)
}

// Last returns the most recent sample, or 0 when empty.
func (s *Series) Last() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.values[len(s.values)-1]
}
