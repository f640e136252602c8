// Package timer provides the restartable single-shot task used for
// debounced preview rendering and autosave scheduling.
package timer

import (
	"sort"
	"sync"
	"time"
)

// Stopper cancels a pending callback.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. The real clock is backed by time.AfterFunc;
// tests use Fake to step time deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Task is a cancellable scheduled callback with at most one pending
// run. Scheduling again replaces the pending run.
type Task struct {
	clock Clock
	mu    sync.Mutex
	gen   uint64
	stop  Stopper
}

// NewTask creates a task bound to clock. A nil clock uses Real.
func NewTask(clock Clock) *Task {
	if clock == nil {
		clock = Real()
	}
	return &Task{clock: clock}
}

// Schedule arranges for f to run after d, cancelling any pending run.
func (t *Task) Schedule(d time.Duration, f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		t.stop.Stop()
	}
	t.gen++
	gen := t.gen
	t.stop = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			return
		}
		t.stop = nil
		t.mu.Unlock()
		f()
	})
}

// Cancel drops the pending run, if any.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		t.stop.Stop()
		t.stop = nil
	}
	t.gen++
}

// Pending reports whether a run is scheduled.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Fake is a manually advanced clock.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	at    time.Time
	seq   int
	f     func()
	done  bool
}

func (ft *fakeTimer) Stop() bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	wasPending := !ft.done
	ft.done = true
	return wasPending
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	ft := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, ft)
	return ft
}

// Advance moves time forward by d and runs every callback that came due,
// in due order. Callbacks run without the clock lock held.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.pending, func(i, j int) bool {
			if c.pending[i].at.Equal(c.pending[j].at) {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].at.Before(c.pending[j].at)
		})
		var next *fakeTimer
		for len(c.pending) > 0 {
			head := c.pending[0]
			if head.done {
				c.pending = c.pending[1:]
				continue
			}
			if head.at.After(target) {
				break
			}
			next = head
			c.pending = c.pending[1:]
			break
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// Pending returns the number of callbacks still waiting.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ft := range c.pending {
		if !ft.done {
			n++
		}
	}
	return n
}
