package apply

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/timer"
)

const (
	// DefaultMinInterval absorbs the duplicate activation a single
	// gesture can produce.
	DefaultMinInterval = 220 * time.Millisecond
	// SavedDisplay is how long the saved status stays up.
	SavedDisplay = 1200 * time.Millisecond
)

// Status is the apply control state shown to the user.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

// Hooks receive protocol results on the dispatch goroutine.
type Hooks struct {
	// Snapshot captures the payload at activation time.
	Snapshot func() Payload
	// Applied runs after a transport handled the payload.
	Applied func(Outcome)
	// Failed receives the user-facing error message.
	Failed func(message string)
	// Status reports control state changes.
	Status func(Status)
}

// Options configures a Protocol.
type Options struct {
	Transports  []Transport
	Clock       timer.Clock
	MinInterval time.Duration
	Dispatch    func(func())
	Timeout     time.Duration
	Hooks       Hooks
}

// Protocol runs guarded apply activations. At most one apply is in
// flight and activations closer than MinInterval are ignored.
type Protocol struct {
	transports  []Transport
	clock       timer.Clock
	minInterval time.Duration
	dispatch    func(func())
	timeout     time.Duration
	hooks       Hooks
	statusTask  *timer.Task
	wg          sync.WaitGroup

	mu       sync.Mutex
	last     time.Time
	busy     bool
	attempts int
}

// New creates a Protocol from opts.
func New(opts Options) *Protocol {
	clock := opts.Clock
	if clock == nil {
		clock = timer.Real()
	}
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Protocol{
		transports:  opts.Transports,
		clock:       clock,
		minInterval: minInterval,
		dispatch:    dispatch,
		timeout:     timeout,
		hooks:       opts.Hooks,
		statusTask:  timer.NewTask(clock),
	}
}

// Busy reports whether an apply is in flight.
func (p *Protocol) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Attempts returns how many activations reached a transport.
func (p *Protocol) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Wait blocks until a remote submission in flight has returned.
func (p *Protocol) Wait() { p.wg.Wait() }

// Activate starts an apply. It reports false when the activation was
// swallowed by the guard.
func (p *Protocol) Activate(ctx context.Context) bool {
	p.mu.Lock()
	now := p.clock.Now()
	if !p.last.IsZero() && now.Sub(p.last) < p.minInterval {
		p.mu.Unlock()
		return false
	}
	p.last = now
	if p.busy {
		p.mu.Unlock()
		return false
	}
	p.busy = true
	p.attempts++
	p.mu.Unlock()

	var payload Payload
	if p.hooks.Snapshot != nil {
		payload = p.hooks.Snapshot()
	}

	for _, t := range p.transports {
		if !t.Available() {
			continue
		}
		if v, ok := t.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				p.finish(t, nil, err, false)
				return true
			}
		}
		if t.Remote() {
			p.setStatus(StatusSaving)
			p.wg.Add(1)
			go func(t Transport) {
				defer p.wg.Done()
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
				out, err := t.Submit(ctx, payload)
				cancel()
				p.dispatch(func() { p.finish(t, out, err, true) })
			}(t)
			return true
		}
		out, err := t.Submit(ctx, payload)
		if errors.Is(err, ErrNotHandled) {
			continue
		}
		p.finish(t, out, err, false)
		return true
	}

	p.finish(nil, nil, ErrNotHandled, false)
	return true
}

func (p *Protocol) finish(t Transport, out *Outcome, err error, remote bool) {
	p.mu.Lock()
	p.busy = false
	p.mu.Unlock()

	if err != nil {
		name := "none"
		if t != nil {
			name = t.Name()
		}
		log.Printf("[apply] %s transport failed: %v", name, err)
		p.setStatus(StatusIdle)
		if p.hooks.Failed != nil {
			p.hooks.Failed(Message(err))
		}
		return
	}
	if p.hooks.Applied != nil {
		p.hooks.Applied(*out)
	}
	if remote {
		p.setStatus(StatusSaved)
		p.statusTask.Schedule(SavedDisplay, func() {
			p.dispatch(func() { p.setStatus(StatusIdle) })
		})
	}
}

func (p *Protocol) setStatus(s Status) {
	if p.hooks.Status != nil {
		p.hooks.Status(s)
	}
}

// Close cancels the pending status reset.
func (p *Protocol) Close() { p.statusTask.Cancel() }
