package feed

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newCountingWatcher(debounce time.Duration, gate func() bool) (*ScrollWatcher, *atomic.Int32) {
	var loads atomic.Int32
	w := NewScrollWatcher(debounce, gate, func() { loads.Add(1) })
	return w, &loads
}

func allow() bool { return true }

func TestScrollWatcher_DebouncesBursts(t *testing.T) {
	w, loads := newCountingWatcher(20*time.Millisecond, allow)
	probe := &fakeProbe{}
	w.SetProbe(probe)
	w.Attach()

	for i := 1; i <= 5; i++ {
		probe.scrollTo(i, true)
		w.Notify()
	}

	assert.Eventually(t, func() bool { return loads.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return loads.Load() > 1 }, 60*time.Millisecond, 5*time.Millisecond)
}

func TestScrollWatcher_RequiresDownwardScroll(t *testing.T) {
	w, loads := newCountingWatcher(5*time.Millisecond, allow)
	probe := &fakeProbe{offset: 10}
	w.SetProbe(probe)
	w.Attach()

	probe.scrollTo(4, true)
	w.Notify()

	assert.Never(t, func() bool { return loads.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScrollWatcher_RequiresLastItemVisible(t *testing.T) {
	w, loads := newCountingWatcher(5*time.Millisecond, allow)
	probe := &fakeProbe{}
	w.SetProbe(probe)
	w.Attach()

	probe.scrollTo(3, false)
	w.Notify()

	assert.Never(t, func() bool { return loads.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScrollWatcher_GateBlocks(t *testing.T) {
	w, loads := newCountingWatcher(5*time.Millisecond, func() bool { return false })
	probe := &fakeProbe{}
	w.SetProbe(probe)
	w.Attach()

	probe.scrollTo(3, true)
	w.Notify()

	assert.Never(t, func() bool { return loads.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScrollWatcher_DetachedIgnoresEvents(t *testing.T) {
	w, loads := newCountingWatcher(5*time.Millisecond, allow)
	probe := &fakeProbe{}
	w.SetProbe(probe)

	probe.scrollTo(3, true)
	w.Notify()
	assert.False(t, w.Attached())

	assert.Never(t, func() bool { return loads.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScrollWatcher_DetachCancelsPending(t *testing.T) {
	w, loads := newCountingWatcher(30*time.Millisecond, allow)
	probe := &fakeProbe{}
	w.SetProbe(probe)
	w.Attach()

	probe.scrollTo(3, true)
	w.Notify()
	w.Detach()

	assert.Never(t, func() bool { return loads.Load() > 0 }, 80*time.Millisecond, 5*time.Millisecond)
}

func TestScrollWatcher_NoProbe(t *testing.T) {
	w, loads := newCountingWatcher(time.Millisecond, allow)
	w.Attach()
	w.Notify()

	assert.Never(t, func() bool { return loads.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)
}
