package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/vlm-models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string][]string{"models": {"InternVL2-1B", "LLaVA-1.6"}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	models, err := client.FetchModels()
	if err != nil {
		t.Fatalf("FetchModels failed: %v", err)
	}
	if len(models) != 2 || models[0] != "InternVL2-1B" {
		t.Errorf("unexpected models: %v", models)
	}
}

func TestFetchModelsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	models, err := client.FetchModels()
	if err == nil {
		t.Fatal("expected error from failing endpoint")
	}
	if len(models) != 1 || models[0] != DefaultModel {
		t.Errorf("fallback not returned: %v", models)
	}

	detection, err := client.FetchDetectionModels()
	if err == nil {
		t.Fatal("expected error from failing endpoint")
	}
	if len(detection) != 1 || detection[0] != DefaultDetectionModel {
		t.Errorf("detection fallback not returned: %v", detection)
	}
}

func TestFetchModelsUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	models, err := client.FetchModels()
	if err == nil {
		t.Fatal("expected connection error")
	}
	if len(models) != 1 || models[0] != DefaultModel {
		t.Errorf("fallback not returned on transport failure: %v", models)
	}
}

func TestFetchPipelines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pipelines": [
			{"pipeline_name": "Detection_Pipeline", "pipeline_type": "detection"},
			"GenAI_Pipeline_on_GPU",
			{"pipeline_name": "GenAI_Pipeline_on_CPU", "pipeline_type": "non-detection"},
			{"pipeline_name": "Detection_Pipeline", "pipeline_type": "detection"},
			42
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	pipelines, err := client.FetchPipelines()
	if err != nil {
		t.Fatalf("FetchPipelines failed: %v", err)
	}

	want := []PipelineInfo{
		{Name: "GenAI_Pipeline_on_CPU", Type: PipelineTypeNonDetection},
		{Name: "GenAI_Pipeline_on_GPU", Type: PipelineTypeNonDetection},
		{Name: "Detection_Pipeline", Type: PipelineTypeDetection},
	}
	if len(pipelines) != len(want) {
		t.Fatalf("got %d pipelines, want %d: %v", len(pipelines), len(want), pipelines)
	}
	for i := range want {
		if pipelines[i] != want[i] {
			t.Errorf("pipeline[%d] = %+v, want %+v", i, pipelines[i], want[i])
		}
	}
	if !pipelines[2].IsDetection() {
		t.Error("Detection_Pipeline not flagged as detection")
	}
}

func TestFetchPipelinesFallback(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	pipelines, err := client.FetchPipelines()
	if err == nil {
		t.Fatal("expected connection error")
	}
	if len(pipelines) != 1 || pipelines[0].Name != DefaultPipeline {
		t.Errorf("fallback not returned: %v", pipelines)
	}
}

func TestStartRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/runs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req StartRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.RTSPURL != "rtsp://cam/1" || req.MaxNewTokens != 70 {
			t.Errorf("request fields not forwarded: %+v", req)
		}
		json.NewEncoder(w).Encode(RunInfo{RunID: "run_1", PipelineID: "pl_1", PeerID: "peer_1"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	info, err := client.StartRun(StartRunRequest{RTSPURL: "rtsp://cam/1", MaxNewTokens: 70})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if info.RunID != "run_1" || info.PeerID != "peer_1" {
		t.Errorf("unexpected run info: %+v", info)
	}
}

func TestStartRunValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": [
			{"loc": ["body", "rtspUrl"], "msg": "field required"},
			{"loc": ["body", "maxNewTokens"], "msg": "value is not a valid integer"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.StartRun(StartRunRequest{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	want := "rtspUrl: field required, maxNewTokens: value is not a valid integer"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestStartRunMessageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "pipeline is not available"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.StartRun(StartRunRequest{RTSPURL: "rtsp://cam/1"})
	if err == nil || err.Error() != "pipeline is not available" {
		t.Errorf("error = %v, want backend message", err)
	}
}

func TestStartRunOpaqueError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.StartRun(StartRunRequest{RTSPURL: "rtsp://cam/1"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStopRun(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		gotPath = r.URL.Path
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.StopRun("run_1"); err != nil {
		t.Fatalf("StopRun failed: %v", err)
	}
	if gotPath != "/api/runs/run_1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestStopRunNotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadGateway} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client := NewClient(server.URL)
		err := client.StopRun("run_1")
		server.Close()

		if !errors.Is(err, ErrNotFound) {
			t.Errorf("status %d: err = %v, want ErrNotFound", status, err)
		}
	}
}

func TestStopRunServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": {"message": "pipeline teardown failed"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.StopRun("run_1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want non-ErrNotFound failure", err)
	}
	if err.Error() != "API error: pipeline teardown failed" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestFetchRuns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"runId": "run_a", "peerId": "peer_a"}, {"runId": "run_b"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	runs, err := client.FetchRuns()
	if err != nil {
		t.Fatalf("FetchRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run_a" || runs[1].RunID != "run_b" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}
