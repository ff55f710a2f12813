package runs

import (
	"sync"
	"time"
)

// Registry is the authoritative client-side map of runId to run state. The
// lifecycle controller creates and removes entries; the stream multiplexer
// and the lag clock only read entries and touch caption timestamps. A runId
// maps to at most one live surface at any time; re-registering replaces,
// never duplicates.
type Registry struct {
	mu          sync.Mutex
	entries     map[string]*entry
	lastCaption map[string]time.Time
	selected    string
}

type entry struct {
	run     Run
	surface Surface
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[string]*entry),
		lastCaption: make(map[string]time.Time),
	}
}

// Register inserts or replaces the entry for run.RunID and binds it to
// surface.
func (r *Registry) Register(run Run, surface Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[run.RunID] = &entry{run: run, surface: surface}
}

// Unregister removes the entry and its caption timestamp. Unknown ids are a
// no-op.
func (r *Registry) Unregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, runID)
	delete(r.lastCaption, runID)
	if r.selected == runID {
		r.selected = ""
	}
}

// Get returns the run for runID.
func (r *Registry) Get(runID string) (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[runID]
	if !ok {
		return Run{}, false
	}
	return e.run, true
}

// Surface returns the display surface bound to runID, or nil when the run
// has no registered binding. Frames addressed to an unknown id are dropped
// by the caller; that is expected, not an error.
func (r *Registry) Surface(runID string) Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[runID]
	if !ok {
		return nil
	}
	return e.surface
}

// IDs returns the registered run ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Touch records the local arrival instant of a caption for runID. The lag
// clock derives staleness from this instant and the client's own clock,
// never from server-supplied timestamps.
func (r *Registry) Touch(runID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[runID]; !ok {
		return
	}
	r.lastCaption[runID] = at
}

// LastCaption returns the last caption arrival instant for runID, if any.
func (r *Registry) LastCaption(runID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastCaption[runID]
	return t, ok
}

// SetSelected marks runID as the currently selected run.
func (r *Registry) SetSelected(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = runID
}

// Selected returns the currently selected run id, or "".
func (r *Registry) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}
