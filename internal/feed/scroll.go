package feed

import (
	"sync"
	"time"
)

// DefaultScrollDebounce is the quiet period before a scroll is evaluated.
const DefaultScrollDebounce = 200 * time.Millisecond

// ViewportProbe reports what the renderer currently shows.
type ViewportProbe interface {
	// LastItemVisible reports whether the last loaded item is on screen.
	LastItemVisible() bool
	// ScrollOffset grows as the user moves down the feed.
	ScrollOffset() int
}

// ScrollWatcher turns scroll events into next-page loads. Events are
// debounced; after the quiet period the watcher loads when it is attached,
// the user moved down, the gate allows it and the last item is visible.
// A detached watcher ignores events and cancels pending evaluations.
type ScrollWatcher struct {
	mu         sync.Mutex
	probe      ViewportProbe
	debounce   time.Duration
	gate       func() bool
	load       func()
	attached   bool
	timer      *time.Timer
	seq        uint64
	lastOffset int
}

// NewScrollWatcher creates a detached watcher. gate reports whether a load
// may start (not loading, at least one item); load starts it.
func NewScrollWatcher(debounce time.Duration, gate func() bool, load func()) *ScrollWatcher {
	if debounce < 0 {
		debounce = 0
	}
	return &ScrollWatcher{debounce: debounce, gate: gate, load: load}
}

// SetProbe installs the viewport probe. Events are ignored until it is set.
func (w *ScrollWatcher) SetProbe(p ViewportProbe) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.probe = p
	if p != nil {
		w.lastOffset = p.ScrollOffset()
	}
}

// Attach starts reacting to scroll events.
func (w *ScrollWatcher) Attach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attached {
		return
	}
	w.attached = true
	if w.probe != nil {
		w.lastOffset = w.probe.ScrollOffset()
	}
}

// Detach stops reacting to scroll events and cancels a pending evaluation.
func (w *ScrollWatcher) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attached = false
	w.seq++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Attached reports whether the watcher reacts to scroll events.
func (w *ScrollWatcher) Attached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attached
}

// Notify records a scroll event.
func (w *ScrollWatcher) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.attached || w.probe == nil {
		return
	}
	w.seq++
	seq := w.seq
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.evaluate(seq) })
}

func (w *ScrollWatcher) evaluate(seq uint64) {
	w.mu.Lock()
	if !w.attached || seq != w.seq || w.probe == nil {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	offset := w.probe.ScrollOffset()
	down := offset > w.lastOffset
	w.lastOffset = offset
	visible := w.probe.LastItemVisible()
	w.mu.Unlock()

	if !down || !visible {
		return
	}
	if w.gate != nil && !w.gate() {
		return
	}
	w.load()
}
