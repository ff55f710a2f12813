package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeSink records pushed samples and the last label per field.
type fakeSink struct {
	mu      sync.Mutex
	samples map[string][]float64
	cpu     string
	ram     string
	gpu     string
	engines string
	freq    string
	power   string
	temp    string
	status  []bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{samples: make(map[string][]float64)}
}

func (f *fakeSink) PushSample(series string, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples[series] = append(f.samples[series], v)
}

func (f *fakeSink) SetCPU(label string)        { f.mu.Lock(); f.cpu = label; f.mu.Unlock() }
func (f *fakeSink) SetRAM(label string)        { f.mu.Lock(); f.ram = label; f.mu.Unlock() }
func (f *fakeSink) SetGPU(label string)        { f.mu.Lock(); f.gpu = label; f.mu.Unlock() }
func (f *fakeSink) SetGPUEngines(label string) { f.mu.Lock(); f.engines = label; f.mu.Unlock() }
func (f *fakeSink) SetGPUFreq(label string)    { f.mu.Lock(); f.freq = label; f.mu.Unlock() }
func (f *fakeSink) SetGPUPower(label string)   { f.mu.Lock(); f.power = label; f.mu.Unlock() }
func (f *fakeSink) SetGPUTemp(label string)    { f.mu.Lock(); f.temp = label; f.mu.Unlock() }

func (f *fakeSink) SetStatus(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = append(f.status, connected)
}

func (f *fakeSink) lastStatus() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.status) == 0 {
		return false, false
	}
	return f.status[len(f.status)-1], true
}

func fields(kv map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return out
}

func TestProcessBatchCPUAndRAM(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{URL: "ws://unused"})

	c.processBatch([]Sample{
		{Name: "cpu", Fields: fields(map[string]float64{"usage_user": 37.25})},
		{Name: "mem", Fields: fields(map[string]float64{"used_percent": 61.5})},
	})

	if sink.cpu != "37.3%" {
		t.Errorf("cpu label = %q", sink.cpu)
	}
	if sink.ram != "61.5%" {
		t.Errorf("ram label = %q", sink.ram)
	}
	if got := sink.samples[SeriesCPU]; len(got) != 1 || got[0] != 37.25 {
		t.Errorf("cpu samples = %v", got)
	}
	if got := sink.samples[SeriesRAM]; len(got) != 1 || got[0] != 61.5 {
		t.Errorf("ram samples = %v", got)
	}
}

func TestProcessBatchGPUEngines(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{URL: "ws://unused"})

	c.processBatch([]Sample{
		{Name: "gpu_engine_usage", Fields: fields(map[string]float64{"usage": 40}), Tags: map[string]string{"engine": "rcs0"}},
		{Name: "gpu_engine_usage", Fields: fields(map[string]float64{"usage": 12}), Tags: map[string]string{"engine": "vcs0"}},
	})

	// Overall GPU usage is the dominant engine, not the average.
	if sink.gpu != "40.0%" {
		t.Errorf("gpu label = %q, want 40.0%%", sink.gpu)
	}
	if got := sink.samples[SeriesGPU]; len(got) != 1 || got[0] != 40 {
		t.Errorf("gpu samples = %v", got)
	}
	if sink.engines != "Rcs0: 40.0% | Vcs0: 12.0%" {
		t.Errorf("engines label = %q", sink.engines)
	}
}

func TestProcessBatchEngineUsagePersists(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{URL: "ws://unused"})

	c.processBatch([]Sample{
		{Name: "gpu_engine_usage", Fields: fields(map[string]float64{"usage": 40}), Tags: map[string]string{"engine": "rcs0"}},
	})
	c.processBatch([]Sample{
		{Name: "gpu_engine_usage", Fields: fields(map[string]float64{"usage": 25}), Tags: map[string]string{"engine": "video_enhance"}},
	})

	// The engines label keeps the last value per engine across batches.
	if sink.engines != "Rcs0: 40.0% | Video Enhance: 25.0%" {
		t.Errorf("engines label = %q", sink.engines)
	}
	// But the per-batch GPU value only reflects this batch's engines.
	if sink.gpu != "25.0%" {
		t.Errorf("gpu label = %q, want 25.0%%", sink.gpu)
	}
}

func TestProcessBatchGPUDetails(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{URL: "ws://unused"})

	c.processBatch([]Sample{
		{Name: "gpu_frequency", Fields: fields(map[string]float64{"value": 1187}), Tags: map[string]string{"type": "cur_freq"}},
		{Name: "gpu_frequency", Fields: fields(map[string]float64{"value": 1400}), Tags: map[string]string{"type": "max_freq"}},
		{Name: "gpu_power", Fields: fields(map[string]float64{"value": 14.7}), Tags: map[string]string{"type": "gpu_cur_power"}},
		{Name: "gpu_power", Fields: fields(map[string]float64{"value": 22.3}), Tags: map[string]string{"type": "pkg_cur_power"}},
		{Name: "temp", Fields: fields(map[string]float64{"temp": 64}), Tags: map[string]string{"sensor": "cpu_package_temp"}},
		{Name: "temp", Fields: fields(map[string]float64{"temp": 99}), Tags: map[string]string{"sensor": "core_3"}},
	})

	if sink.freq != "Freq: 1187 MHz" {
		t.Errorf("freq label = %q", sink.freq)
	}
	if sink.power != "Power: 14.7W (Pkg: 22.3W)" {
		t.Errorf("power label = %q", sink.power)
	}
	if sink.temp != "Temp: 64°C" {
		t.Errorf("temp label = %q", sink.temp)
	}
}

func TestProcessBatchPowerWithoutPackage(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{URL: "ws://unused"})

	c.processBatch([]Sample{
		{Name: "gpu_power", Fields: fields(map[string]float64{"value": 9.1}), Tags: map[string]string{"type": "gpu_cur_power"}},
	})
	if sink.power != "Power: 9.1W" {
		t.Errorf("power label = %q", sink.power)
	}
}

func TestProcessBatchIgnoresUnknownNames(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{URL: "ws://unused"})

	c.processBatch([]Sample{
		{Name: "disk", Fields: fields(map[string]float64{"used_percent": 80})},
		{Name: "cpu", Fields: map[string]interface{}{"usage_user": "not a number"}},
	})

	if len(sink.samples) != 0 || sink.cpu != "" {
		t.Errorf("unknown or malformed samples were not ignored: %+v", sink)
	}
}

func TestFormatEngineName(t *testing.T) {
	cases := map[string]string{
		"RCS0":          "Rcs0",
		"VIDEO_ENHANCE": "Video Enhance",
		"vcs0":          "Vcs0",
		"":              "Unknown",
	}
	for in, want := range cases {
		if got := formatEngineName(in); got != want {
			t.Errorf("formatEngineName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollectorConnectAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotClientID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClientID = r.Header.Get("X-Client-ID")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(Batch{Metrics: []Sample{
			{Name: "cpu", Fields: fields(map[string]float64{"usage_user": 50})},
		}})
		// Hold the socket open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	sink := newFakeSink()
	c := NewCollector(sink, Config{
		URL:      "ws" + strings.TrimPrefix(server.URL, "http"),
		ClientID: "dash-test",
	})
	c.Connect()
	defer c.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		done := sink.cpu == "50.0%"
		sink.mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	sink.mu.Lock()
	cpu := sink.cpu
	sink.mu.Unlock()
	if cpu != "50.0%" {
		t.Fatalf("cpu label = %q, batch not processed", cpu)
	}
	if gotClientID != "dash-test" {
		t.Errorf("client id header = %q", gotClientID)
	}
	if connected, ok := sink.lastStatus(); !ok || !connected {
		t.Error("status not reported as connected")
	}
	if c.Attempts() != 0 {
		t.Errorf("attempts = %d after successful connect, want 0", c.Attempts())
	}
}

func TestCollectorReconnectBound(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{
		URL:         "ws://127.0.0.1:1/ws/clients",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	})
	c.Connect()
	defer c.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && c.Attempts() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Attempts() != 3 {
		t.Fatalf("attempts = %d, want 3", c.Attempts())
	}

	// Past the bound the collector stays disconnected.
	time.Sleep(50 * time.Millisecond)
	if c.Attempts() != 3 {
		t.Errorf("attempts grew past the bound: %d", c.Attempts())
	}
	if c.State() != StateClosed {
		t.Errorf("state = %v, want closed", c.State())
	}
	if connected, ok := sink.lastStatus(); !ok || connected {
		t.Error("status not reported as disconnected")
	}
}

func TestCollectorCloseStopsReconnect(t *testing.T) {
	sink := newFakeSink()
	c := NewCollector(sink, Config{
		URL:         "ws://127.0.0.1:1/ws/clients",
		MaxAttempts: 1000,
		RetryDelay:  time.Millisecond,
	})
	c.Connect()
	time.Sleep(20 * time.Millisecond)
	c.Close()

	settled := c.Attempts()
	time.Sleep(50 * time.Millisecond)
	if c.Attempts() != settled {
		t.Error("reconnect attempted after Close")
	}
}
