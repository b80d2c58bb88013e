package tui

import "sync"

// viewportProbe publishes what the feed view currently shows to the scroll
// watcher, which reads it from its own goroutine.
type viewportProbe struct {
	mu          sync.Mutex
	offset      int
	lastVisible bool
}

// ScrollOffset is the index of the selected card.
func (p *viewportProbe) ScrollOffset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

func (p *viewportProbe) LastItemVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastVisible
}

func (p *viewportProbe) set(offset int, lastVisible bool) {
	p.mu.Lock()
	p.offset = offset
	p.lastVisible = lastVisible
	p.mu.Unlock()
}
