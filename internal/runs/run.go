// Package runs owns the client-side run registry and lifecycle.
package runs

import "strings"

// Run is one active or restored captioning pipeline instance bound to a
// video source and a model configuration. The backend is the source of
// truth; a Run is the client's last-known projection of it.
type Run struct {
	RunID        string
	PipelineID   string
	PeerID       string
	MetadataFile string

	ModelName    string
	PipelineName string
	Prompt       string
	MaxTokens    int
	RTSPURL      string

	// Detection fields are set only when the run's pipeline type is
	// "detection".
	DetectionEnabled   bool
	DetectionModelName string
	DetectionThreshold float64
}

// DisplayName is the run id formatted for humans: underscores read as spaces.
func (r Run) DisplayName() string {
	return strings.ReplaceAll(r.RunID, "_", " ")
}

// Device derives the compute device chip from the pipeline name.
func (r Run) Device() string {
	if strings.Contains(strings.ToLower(r.PipelineName), "gpu") {
		return "GPU"
	}
	return "CPU"
}

// AlertState tags a run's display surface in alert mode. The states are
// mutually exclusive; setting one clears the other.
type AlertState int

const (
	AlertNone AlertState = iota
	AlertActive
	AlertSafe
)

// MetricChips carries the display-ready per-run inference metrics. Absent
// metrics render as the placeholder.
type MetricChips struct {
	TTFT       string
	TPOT       string
	Throughput string
}

// Surface is the opaque handle to a run's display: caption sink, metric-chip
// sinks, timestamp sink, lag sink, and video sink. A Surface is exclusively
// owned by its registry entry and is never shared across runs.
type Surface interface {
	SetCaption(text string)
	SetMetrics(chips MetricChips)
	SetTimestamp(label string)
	SetLag(label string)
	SetAlert(state AlertState)
	SetVideoURL(url string)
}
