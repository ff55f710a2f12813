package telemetry

import (
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the collector connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

// Reconnection defaults.
const (
	DefaultMaxAttempts = 10
	DefaultRetryDelay  = 3 * time.Second
)

// Chart series keys.
const (
	SeriesCPU = "cpu"
	SeriesRAM = "ram"
	SeriesGPU = "gpu"
)

// Sample is one tagged system-metric sample.
type Sample struct {
	Name   string                 `json:"name"`
	Fields map[string]interface{} `json:"fields"`
	Tags   map[string]string      `json:"tags"`
}

// Batch is one collector message; its samples are processed atomically.
type Batch struct {
	Metrics []Sample `json:"metrics"`
}

// Sink is the fixed set of display fields the collector writes to. It has
// no per-run addressing.
type Sink interface {
	PushSample(series string, v float64)
	SetCPU(label string)
	SetRAM(label string)
	SetGPU(label string)
	SetGPUEngines(label string)
	SetGPUFreq(label string)
	SetGPUPower(label string)
	SetGPUTemp(label string)
	SetStatus(connected bool)
}

// Config configures the collector connection.
type Config struct {
	// URL is the collector websocket endpoint.
	URL string
	// ClientID identifies this client to the collector.
	ClientID string
	// MaxAttempts bounds reconnection; past it the connection stays
	// disconnected until the operator intervenes.
	MaxAttempts int
	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration
	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer
}

// Collector maintains one bidirectional socket to the system-metrics source,
// classifies samples by family and tag, and projects them into the sink. Its
// lifecycle is independent of the metadata stream; their failures do not
// cascade into each other.
type Collector struct {
	cfg  Config
	sink Sink

	mu       sync.Mutex
	state    State
	attempts int
	conn     *websocket.Conn
	done     bool

	// engineUsage accumulates per-engine GPU usage across batches for the
	// engines label. Overall GPU usage is derived per batch.
	engineUsage map[string]float64
}

// NewCollector creates a collector. It does not connect; call Connect.
func NewCollector(sink Sink, cfg Config) *Collector {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Collector{
		cfg:         cfg,
		sink:        sink,
		state:       StateIdle,
		engineUsage: make(map[string]float64),
	}
}

// Connect establishes the socket. A call while connected or connecting does
// nothing.
func (c *Collector) Connect() {
	c.mu.Lock()
	if c.done || c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial()
}

// State returns the current connection state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current reconnect attempt count.
func (c *Collector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Close shuts the socket down for good; no reconnect is scheduled.
func (c *Collector) Close() {
	c.mu.Lock()
	c.done = true
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Collector) dial() {
	log.Printf("Connecting to metrics collector: %s", c.cfg.URL)

	header := http.Header{}
	if c.cfg.ClientID != "" {
		header.Set("X-Client-ID", c.cfg.ClientID)
	}

	conn, resp, err := c.cfg.Dialer.Dial(c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		c.disconnected(err)
		return
	}

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.state = StateOpen
	// A successful connect resets the budget; transient outages must not
	// exhaust it permanently.
	c.attempts = 0
	c.conn = conn
	c.mu.Unlock()

	log.Printf("Metrics collector connected")
	c.sink.SetStatus(true)

	for {
		var batch Batch
		if err := conn.ReadJSON(&batch); err != nil {
			c.disconnected(err)
			return
		}
		if len(batch.Metrics) == 0 {
			continue
		}
		c.processBatch(batch.Metrics)
	}
}

// disconnected handles a close or error. Below the attempt bound a reconnect
// is scheduled after the fixed delay; at the bound the connection stays
// disconnected until the operator intervenes.
func (c *Collector) disconnected(err error) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed
	done := c.done
	retry := false
	if !done && c.attempts < c.cfg.MaxAttempts {
		c.attempts++
		retry = true
	}
	attempts := c.attempts
	c.mu.Unlock()

	c.sink.SetStatus(false)
	if done {
		return
	}
	if err != nil {
		log.Printf("Metrics collector error: %v", err)
	}

	if retry {
		log.Printf("Reconnecting to collector (%d/%d)", attempts, c.cfg.MaxAttempts)
		time.AfterFunc(c.cfg.RetryDelay, c.Connect)
	} else {
		log.Printf("Max reconnect attempts reached for metrics collector")
	}
}

// processBatch dispatches one batch by metric family. Power values are
// paired within the batch so the label never mixes samples from different
// batches. Unrecognized names are ignored.
func (c *Collector) processBatch(samples []Sample) {
	var gpuPower, pkgPower *float64
	var batchEngineMax *float64

	for _, s := range samples {
		switch s.Name {
		case "cpu":
			if v, ok := num(s.Fields, "usage_user"); ok {
				c.sink.PushSample(SeriesCPU, v)
				c.sink.SetCPU(fmt.Sprintf("%.1f%%", v))
			}
		case "mem":
			if v, ok := num(s.Fields, "used_percent"); ok {
				c.sink.PushSample(SeriesRAM, v)
				c.sink.SetRAM(fmt.Sprintf("%.1f%%", v))
			}
		case "gpu_engine_usage":
			v, ok := num(s.Fields, "usage")
			engine := s.Tags["engine"]
			if !ok || engine == "" {
				continue
			}
			c.engineUsage[strings.ToUpper(engine)] = v
			if batchEngineMax == nil || v > *batchEngineMax {
				batchEngineMax = &v
			}
		case "gpu_frequency":
			if v, ok := num(s.Fields, "value"); ok && s.Tags["type"] == "cur_freq" {
				c.sink.SetGPUFreq(fmt.Sprintf("Freq: %.0f MHz", v))
			}
		case "gpu_power":
			if v, ok := num(s.Fields, "value"); ok {
				switch s.Tags["type"] {
				case "gpu_cur_power":
					gpuPower = &v
				case "pkg_cur_power":
					pkgPower = &v
				}
			}
		case "temp":
			if v, ok := num(s.Fields, "temp"); ok && strings.Contains(s.Tags["sensor"], "package") {
				c.sink.SetGPUTemp(fmt.Sprintf("Temp: %.0f°C", v))
			}
		}
	}

	if gpuPower != nil {
		label := fmt.Sprintf("Power: %.1fW", *gpuPower)
		if pkgPower != nil {
			label += fmt.Sprintf(" (Pkg: %.1fW)", *pkgPower)
		}
		c.sink.SetGPUPower(label)
	}

	if len(c.engineUsage) > 0 {
		c.sink.SetGPUEngines(c.enginesLabel())
	}

	// The dominant compute engine, not the average, reflects saturation.
	if batchEngineMax != nil {
		c.sink.PushSample(SeriesGPU, *batchEngineMax)
		c.sink.SetGPU(fmt.Sprintf("%.1f%%", *batchEngineMax))
	}
}

func (c *Collector) enginesLabel() string {
	names := make([]string, 0, len(c.engineUsage))
	for name := range c.engineUsage {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %.1f%%", formatEngineName(name), c.engineUsage[name]))
	}
	return strings.Join(parts, " | ")
}

// formatEngineName renders an engine key for display: "RCS0" -> "Rcs0",
// "VIDEO_ENHANCE" -> "Video Enhance".
func formatEngineName(name string) string {
	if name == "" {
		return "Unknown"
	}
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// num pulls a numeric field out of a sample's loosely typed field map.
func num(fields map[string]interface{}, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
