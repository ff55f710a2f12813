package runs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LagPlaceholder is shown for runs that have not received a caption yet.
const LagPlaceholder = "—"

// DefaultLagPeriod is how often the lag clock recomputes staleness.
const DefaultLagPeriod = 100 * time.Millisecond

// LagClock periodically recomputes, for every registered run, the elapsed
// time since its last caption arrival, using the client's own clock. It is
// the only component that updates surfaces purely on the passage of time;
// without it a stalled run would show a frozen lag forever.
type LagClock struct {
	registry *Registry
	period   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// now is swapped out by tests.
	now func() time.Time
}

// NewLagClock creates a lag clock over the registry. A period of 0 uses
// DefaultLagPeriod.
func NewLagClock(registry *Registry, period time.Duration) *LagClock {
	if period <= 0 {
		period = DefaultLagPeriod
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LagClock{
		registry: registry,
		period:   period,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Start begins the tick loop.
func (lc *LagClock) Start() {
	lc.wg.Add(1)
	go lc.loop()
}

// Stop halts the tick loop and waits for it to exit.
func (lc *LagClock) Stop() {
	lc.cancel()
	lc.wg.Wait()
}

func (lc *LagClock) loop() {
	defer lc.wg.Done()

	ticker := time.NewTicker(lc.period)
	defer ticker.Stop()

	for {
		select {
		case <-lc.ctx.Done():
			return
		case <-ticker.C:
			lc.Tick()
		}
	}
}

// Tick updates the lag display of every registered run once. Exported so
// tests can drive the clock without real time.
func (lc *LagClock) Tick() {
	now := lc.now()
	for _, id := range lc.registry.IDs() {
		surface := lc.registry.Surface(id)
		if surface == nil {
			continue
		}
		if last, ok := lc.registry.LastCaption(id); ok {
			surface.SetLag(FormatLag(now.Sub(last)))
		} else {
			surface.SetLag(LagPlaceholder)
		}
	}
}

// FormatLag renders an elapsed duration as seconds with two decimals.
func FormatLag(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
