package api

import (
	"encoding/json"
	"sort"
)

// Pipeline types as reported by the backend.
const (
	PipelineTypeDetection    = "detection"
	PipelineTypeNonDetection = "non-detection"
)

// PipelineInfo is one selectable pipeline.
type PipelineInfo struct {
	Name string `json:"pipeline_name"`
	Type string `json:"pipeline_type"`
}

// IsDetection reports whether the pipeline expects detection parameters.
func (p PipelineInfo) IsDetection() bool {
	return p.Type == PipelineTypeDetection
}

// NormalizePipelines accepts raw pipeline entries in either the object shape
// {pipeline_name, pipeline_type} or a bare name string, drops everything
// else, deduplicates by name (last entry wins), and sorts non-detection
// first, then by name.
func NormalizePipelines(raw []json.RawMessage) []PipelineInfo {
	byName := make(map[string]PipelineInfo)
	order := make([]string, 0, len(raw))

	for _, r := range raw {
		var obj PipelineInfo
		if err := json.Unmarshal(r, &obj); err == nil && obj.Name != "" {
			if obj.Type != PipelineTypeDetection {
				obj.Type = PipelineTypeNonDetection
			}
			if _, seen := byName[obj.Name]; !seen {
				order = append(order, obj.Name)
			}
			byName[obj.Name] = obj
			continue
		}
		var name string
		if err := json.Unmarshal(r, &name); err == nil && name != "" {
			if _, seen := byName[name]; !seen {
				order = append(order, name)
			}
			byName[name] = PipelineInfo{Name: name, Type: PipelineTypeNonDetection}
		}
	}

	pipelines := make([]PipelineInfo, 0, len(byName))
	for _, name := range order {
		pipelines = append(pipelines, byName[name])
	}
	sort.Slice(pipelines, func(i, j int) bool {
		if pipelines[i].Type != pipelines[j].Type {
			return pipelines[i].Type == PipelineTypeNonDetection
		}
		return pipelines[i].Name < pipelines[j].Name
	})
	return pipelines
}
