package runs

import (
	"errors"
	"fmt"
	"log"

	"github.com/itachisky/livecap/internal/api"
)

// Defaults applied when a start request leaves fields unset or invalid.
const (
	DefaultMaxTokens          = 70
	DefaultDetectionThreshold = 0.5
)

// Backend is the subset of the API client the controller drives.
type Backend interface {
	StartRun(req api.StartRunRequest) (*api.RunInfo, error)
	FetchRuns() ([]api.RunInfo, error)
	StopRun(runID string) error
}

// SurfaceFactory allocates and releases display surfaces. The dashboard
// provides the real one; tests use fakes.
type SurfaceFactory interface {
	Create(run Run) Surface
	Release(runID string)
}

// StartConfig is the user-facing run configuration before defaults are
// applied.
type StartConfig struct {
	RTSPURL      string
	Prompt       string
	ModelName    string
	PipelineName string
	PipelineType string
	MaxTokens    int
	RunName      string

	DetectionModelName string
	DetectionThreshold float64
}

// Controller drives run create/restore/stop transitions against the backend
// and keeps the registry consistent with the outcomes.
type Controller struct {
	backend  Backend
	registry *Registry
	surfaces SurfaceFactory

	signalingURL  string
	apiBase       string
	defaultPrompt string
}

// NewController creates a lifecycle controller.
func NewController(backend Backend, registry *Registry, surfaces SurfaceFactory, signalingURL, apiBase, defaultPrompt string) *Controller {
	return &Controller{
		backend:       backend,
		registry:      registry,
		surfaces:      surfaces,
		signalingURL:  signalingURL,
		apiBase:       apiBase,
		defaultPrompt: defaultPrompt,
	}
}

// Create starts a new run. On success the run is registered with a fresh
// surface and becomes the selected run. On failure the backend's structured
// validation errors are surfaced and the registry is left untouched.
func (c *Controller) Create(cfg StartConfig) (Run, error) {
	if cfg.RTSPURL == "" {
		return Run{}, errors.New("rtsp url is required")
	}

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = c.defaultPrompt
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = api.DefaultModel
	}
	pipelineName := cfg.PipelineName
	if pipelineName == "" {
		pipelineName = api.DefaultPipeline
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	detection := cfg.PipelineType == api.PipelineTypeDetection
	var detectionModel *string
	var detectionThreshold *float64
	if detection {
		if cfg.DetectionModelName != "" {
			name := cfg.DetectionModelName
			detectionModel = &name
		}
		threshold := cfg.DetectionThreshold
		if threshold < 0 || threshold > 1 {
			threshold = DefaultDetectionThreshold
		}
		detectionThreshold = &threshold
	}

	runName := NormalizeRunName(cfg.RunName)
	if runName != "" {
		runName = UniqueRunName(runName, c.registry.IDs())
	}

	req := api.StartRunRequest{
		RTSPURL:            cfg.RTSPURL,
		Prompt:             prompt,
		DetectionModelName: detectionModel,
		DetectionThreshold: detectionThreshold,
		ModelName:          modelName,
		MaxNewTokens:       maxTokens,
		PipelineName:       pipelineName,
		RunName:            runName,
	}

	info, err := c.backend.StartRun(req)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		RunID:            info.RunID,
		PipelineID:       info.PipelineID,
		PeerID:           info.PeerID,
		MetadataFile:     info.MetadataFile,
		ModelName:        modelName,
		PipelineName:     pipelineName,
		Prompt:           prompt,
		MaxTokens:        maxTokens,
		RTSPURL:          cfg.RTSPURL,
		DetectionEnabled: detection,
	}
	if detectionModel != nil {
		run.DetectionModelName = *detectionModel
	}
	if detectionThreshold != nil {
		run.DetectionThreshold = *detectionThreshold
	}

	c.attach(run)
	return run, nil
}

// Restore reconciles server-reported runs into the registry on startup, in
// server-returned order, selecting the last one processed. This is
// best-effort: a fetch error leaves the registry empty and is reported to
// the caller for logging only, never as a user-facing failure.
func (c *Controller) Restore() ([]Run, error) {
	infos, err := c.backend.FetchRuns()
	if err != nil {
		log.Printf("Failed to restore active runs: %v", err)
		return nil, err
	}

	restored := make([]Run, 0, len(infos))
	for _, info := range infos {
		modelName := info.ModelName
		if modelName == "" {
			modelName = "Unknown"
		}
		run := Run{
			RunID:        info.RunID,
			PipelineID:   info.PipelineID,
			PeerID:       info.PeerID,
			MetadataFile: info.MetadataFile,
			ModelName:    modelName,
			PipelineName: info.PipelineName,
			Prompt:       info.Prompt,
			MaxTokens:    info.MaxTokens,
			RTSPURL:      info.RTSPURL,
		}
		c.attach(run)
		restored = append(restored, run)
	}
	return restored, nil
}

// Stop requests termination from the backend. Success and "run unknown" both
// tear the run down (stop is idempotent); any other failure leaves the
// registry entry intact so the stop affordance can be re-armed for a manual
// retry. Transport errors are indistinguishable from "other failure" and
// must not silently remove a still-running pipeline.
func (c *Controller) Stop(runID string) error {
	if _, ok := c.registry.Get(runID); !ok {
		return nil
	}

	err := c.backend.StopRun(runID)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("stop %s: %w", runID, err)
	}
	if errors.Is(err, api.ErrNotFound) {
		log.Printf("Run %s missing on server, removing", runID)
	}

	c.teardown(runID)
	return nil
}

// attach registers the run with a fresh surface and points its video sink at
// the signaling server.
func (c *Controller) attach(run Run) {
	surface := c.surfaces.Create(run)
	if url := api.VideoURL(c.signalingURL, c.apiBase, run.PeerID); url != "" {
		surface.SetVideoURL(url)
	}
	c.registry.Register(run, surface)
	c.registry.SetSelected(run.RunID)
}

func (c *Controller) teardown(runID string) {
	log.Printf("Tearing down run %s", runID)
	c.registry.Unregister(runID)
	c.surfaces.Release(runID)
}
