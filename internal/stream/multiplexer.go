package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/itachisky/livecap/internal/runs"
)

// ConnState is the multiplexer connection state.
type ConnState int

const (
	StateUninitialized ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// DefaultRetryDelay is how long the multiplexer waits before a reconnection
// attempt after the connection fully closes.
const DefaultRetryDelay = 5 * time.Second

// Config configures the multiplexer.
type Config struct {
	// URL is the metadata-stream endpoint.
	URL string
	// AlertMode enables caption scanning and alert tagging.
	AlertMode bool
	// RetryDelay overrides DefaultRetryDelay when positive.
	RetryDelay time.Duration
	// Client overrides the HTTP client. The default has no timeout, as
	// the connection is long-lived.
	Client *http.Client
	// OnState, when set, is called on every connection state transition.
	OnState func(ConnState)
}

// Multiplexer owns exactly one long-lived server-push connection and routes
// each inbound frame to the registry entry addressed by its embedded run id.
// Subscriber identity is keyed by run id, not by connection instance, so
// reconnects need no resubscription step. Exactly one instance is expected
// process-wide; Init while open or connecting is a no-op.
type Multiplexer struct {
	cfg      Config
	registry *runs.Registry

	mu     sync.Mutex
	state  ConnState
	cancel context.CancelFunc
	done   bool

	now func() time.Time
}

// New creates a multiplexer over the registry. It does not connect; call
// Init.
func New(registry *runs.Registry, cfg Config) *Multiplexer {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Multiplexer{
		cfg:      cfg,
		registry: registry,
		state:    StateUninitialized,
		now:      time.Now,
	}
}

// Init establishes the connection. Idempotent: a second call while a
// connection is live or connecting does nothing.
func (m *Multiplexer) Init() {
	m.mu.Lock()
	if m.done || m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.notify(StateConnecting)
	log.Printf("Initializing multiplexed metadata stream")
	go m.read(ctx)
}

// State returns the current connection state.
func (m *Multiplexer) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close shuts the connection down for good. No reconnect is scheduled.
// Registry entries are untouched; transport failure is never destructive to
// run state.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	m.done = true
	if m.cancel != nil {
		m.cancel()
	}
	m.state = StateClosed
	m.mu.Unlock()
	m.notify(StateClosed)
}

func (m *Multiplexer) read(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.URL, nil)
	if err != nil {
		m.disconnected(err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.cfg.Client.Do(req)
	if err != nil {
		m.disconnected(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		m.disconnected(fmt.Errorf("HTTP %d", resp.StatusCode))
		return
	}

	m.setState(StateOpen)
	log.Printf("Multiplexed metadata stream connected")

	// Server-sent events: "data:" lines accumulate until a blank line
	// terminates the event. Other SSE fields (event:, id:, comments) are
	// not used by the backend and are skipped.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				m.dispatch(strings.Join(data, "\n"))
				data = data[:0]
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	m.disconnected(scanner.Err())
}

// dispatch routes one frame to the run it addresses. Frames for runs with no
// registered binding are dropped; that is expected when a run's UI has not
// been attached yet or was already torn down.
func (m *Multiplexer) dispatch(payload string) {
	var frame Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		log.Printf("Error parsing metadata: %v", err)
		return
	}
	if frame.RunID == "" {
		log.Printf("Received metadata without runId, ignoring")
		return
	}
	if frame.Removed {
		// Server-side expiry notice. Teardown stays with the lifecycle
		// controller's stop path; a removal without a local stop is
		// only logged.
		log.Printf("Run %s removed from server", frame.RunID)
		return
	}

	surface := m.registry.Surface(frame.RunID)
	if surface == nil {
		return
	}

	caption := frame.Data.Caption()
	surface.SetCaption(caption)
	if m.cfg.AlertMode {
		surface.SetAlert(AlertFor(caption))
	}
	surface.SetMetrics(frame.Data.Chips())
	surface.SetTimestamp(frame.Data.TimestampLabel())

	// Lag is measured from the local arrival instant, never from a
	// server-supplied timestamp, to avoid clock-skew artifacts.
	m.registry.Touch(frame.RunID, m.now())
	surface.SetLag(runs.FormatLag(0))
}

// disconnected handles transport failure: no run state is torn down, and
// exactly one reconnection attempt is scheduled after the retry delay. The
// attempt only fires if the connection is still fully closed by then, so a
// retry never races an in-progress one.
func (m *Multiplexer) disconnected(err error) {
	m.mu.Lock()
	done := m.done
	m.state = StateClosed
	m.mu.Unlock()
	m.notify(StateClosed)

	if done {
		return
	}
	if err != nil {
		log.Printf("Metadata stream error: %v", err)
	} else {
		log.Printf("Metadata stream closed")
	}

	time.AfterFunc(m.cfg.RetryDelay, func() {
		if m.State() == StateClosed {
			log.Printf("Reconnecting metadata stream")
			m.Init()
		}
	})
}

func (m *Multiplexer) setState(s ConnState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.notify(s)
}

func (m *Multiplexer) notify(s ConnState) {
	if m.cfg.OnState != nil {
		m.cfg.OnState(s)
	}
}
