// Package api wraps HTTP calls to the captioning backend.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Hardcoded fallbacks shown when the discovery endpoints are unreachable.
const (
	DefaultModel          = "InternVL2-1B"
	DefaultDetectionModel = "yolov8s"
	DefaultPipeline       = "GenAI_Pipeline_on_CPU"
)

// ErrNotFound marks a backend response that reported the resource as gone.
// Stop treats it as idempotent success.
var ErrNotFound = errors.New("run not found on server")

// RunInfo describes one active run as reported by the backend.
type RunInfo struct {
	RunID        string `json:"runId"`
	PipelineID   string `json:"pipelineId"`
	PeerID       string `json:"peerId"`
	MetadataFile string `json:"metadataFile"`
	ModelName    string `json:"modelName"`
	PipelineName string `json:"pipelineName"`
	RunName      string `json:"runName"`
	Prompt       string `json:"prompt"`
	MaxTokens    int    `json:"maxTokens"`
	RTSPURL      string `json:"rtspUrl"`
}

// StartRunRequest is the POST /api/runs body.
type StartRunRequest struct {
	RTSPURL            string   `json:"rtspUrl"`
	Prompt             string   `json:"prompt"`
	DetectionModelName *string  `json:"detectionModelName"`
	DetectionThreshold *float64 `json:"detectionThreshold"`
	ModelName          string   `json:"modelName"`
	MaxNewTokens       int      `json:"maxNewTokens"`
	PipelineName       string   `json:"pipelineName"`
	RunName            string   `json:"runName,omitempty"`
}

// Client wraps HTTP calls to the captioning backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// BaseURL returns the backend base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchModels fetches the captioning model list. On any failure it returns
// the hardcoded default list together with the error, so callers can always
// display something.
func (c *Client) FetchModels() ([]string, error) {
	return c.fetchModelList("/api/vlm-models", DefaultModel)
}

// FetchDetectionModels fetches the detection model list with the same
// fallback behavior as FetchModels.
func (c *Client) FetchDetectionModels() ([]string, error) {
	return c.fetchModelList("/api/detection-models", DefaultDetectionModel)
}

func (c *Client) fetchModelList(path, fallback string) ([]string, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return []string{fallback}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return []string{fallback}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var data struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return []string{fallback}, err
	}
	if len(data.Models) == 0 {
		return []string{fallback}, nil
	}
	return data.Models, nil
}

// FetchPipelines fetches the pipeline list, deduplicated by name (last entry
// wins) and sorted non-detection first, then lexicographically. On failure it
// returns the hardcoded default pipeline together with the error.
func (c *Client) FetchPipelines() ([]PipelineInfo, error) {
	fallback := []PipelineInfo{{Name: DefaultPipeline, Type: PipelineTypeNonDetection}}

	resp, err := c.httpClient.Get(c.baseURL + "/api/pipelines")
	if err != nil {
		return fallback, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fallback, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var data struct {
		Pipelines []json.RawMessage `json:"pipelines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fallback, err
	}

	pipelines := NormalizePipelines(data.Pipelines)
	if len(pipelines) == 0 {
		return fallback, nil
	}
	return pipelines, nil
}

// FetchRuns lists the currently active runs. An empty list is valid and
// means there is nothing to restore.
func (c *Client) FetchRuns() ([]RunInfo, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/runs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var runs []RunInfo
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// StartRun asks the backend to start a new captioning run. Validation
// failures come back as one human-readable message joined from the backend's
// field-level errors.
func (c *Client) StartRun(req StartRunRequest) (*RunInfo, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/api/runs", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, decodeStartError(resp.StatusCode, resp.Status, body)
	}

	var info RunInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StopRun asks the backend to terminate a run. A 404 or 502 response is
// reported as ErrNotFound so callers can treat it as idempotent success.
// Any other failure keeps the run alive on the caller side.
func (c *Client) StopRun(runID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/runs/"+runID, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadGateway {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		if msg := extractMessage(body); msg != "" {
			return fmt.Errorf("API error: %s", msg)
		}
		return fmt.Errorf("API error: %s", resp.Status)
	}
	return nil
}

// decodeStartError turns a failed start response into a single error.
// Field-level validation errors (422 with a detail array) are joined as
// "field: msg, field: msg".
func decodeStartError(statusCode int, status string, body []byte) error {
	var payload struct {
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("API error: %s", status)
	}

	if statusCode == http.StatusUnprocessableEntity && len(payload.Detail) > 0 {
		var fields []struct {
			Loc []json.RawMessage `json:"loc"`
			Msg string            `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &fields); err == nil && len(fields) > 0 {
			parts := make([]string, 0, len(fields))
			for _, f := range fields {
				field := "unknown field"
				if len(f.Loc) > 0 {
					var name string
					if json.Unmarshal(f.Loc[len(f.Loc)-1], &name) == nil && name != "" {
						field = name
					}
				}
				parts = append(parts, field+": "+f.Msg)
			}
			return errors.New(strings.Join(parts, ", "))
		}
	}

	if payload.Message != "" {
		return errors.New(payload.Message)
	}
	if msg := extractMessage(body); msg != "" {
		return errors.New(msg)
	}
	return fmt.Errorf("API error: %s", status)
}

// extractMessage pulls a message out of the backend's assorted error shapes:
// {"message": ...}, {"detail": {"message": ...}} or {"detail": "..."}.
func extractMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Detail) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Detail, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if err := json.Unmarshal(payload.Detail, &plain); err == nil {
			return plain
		}
	}
	return ""
}
