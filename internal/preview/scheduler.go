package preview

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/section"
	"github.com/ziadkadry99/pageblocks/internal/timer"
)

// State is the scheduler lifecycle position.
type State int

const (
	Idle State = iota
	Scheduled
	Rendering
	Applied
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Rendering:
		return "rendering"
	case Applied:
		return "applied"
	default:
		return "idle"
	}
}

// Sink receives finished preview documents.
type Sink interface {
	Apply(requestID uint64, doc string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(requestID uint64, doc string)

func (f SinkFunc) Apply(requestID uint64, doc string) { f(requestID, doc) }

// Sequencer issues monotonically increasing request ids and answers
// whether an id is still the latest one issued.
type Sequencer struct {
	mu     sync.Mutex
	latest uint64
}

// Next issues a new id, superseding every earlier one.
func (q *Sequencer) Next() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.latest++
	return q.latest
}

// Latest returns the most recently issued id.
func (q *Sequencer) Latest() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.latest
}

// IsLatest reports whether id has not been superseded.
func (q *Sequencer) IsLatest(id uint64) bool {
	return id == q.Latest()
}

// Delays configures the debounce applied per kind of change.
type Delays struct {
	CSS        time.Duration
	Structural time.Duration
	Field      time.Duration
}

// DefaultDelays batches stylesheet typing and renders everything else
// right away.
func DefaultDelays() Delays {
	return Delays{CSS: time.Second}
}

// For returns the debounce delay for a model change.
func (d Delays) For(c section.Change) time.Duration {
	switch {
	case c.Kind == section.ChangeField && c.Field == section.FieldCSS:
		return d.CSS
	case c.Structural():
		return d.Structural
	default:
		return d.Field
	}
}

// Options configures a Scheduler.
type Options struct {
	Clock     timer.Clock
	Renderer  Renderer
	Sink      Sink
	Assets    Assets
	Injection Injection
	// Snapshot returns the current sections. It is called on the
	// dispatch goroutine.
	Snapshot func() []section.Section
	// Dispatch re-enters the owner's event loop. Nil runs inline.
	Dispatch func(func())
	Timeout  time.Duration
}

// Scheduler debounces preview requests and applies only the result of
// the latest issued request. Server render failures fall back to local
// assembly.
type Scheduler struct {
	task     *timer.Task
	seq      Sequencer
	renderer Renderer
	sink     Sink
	snapshot func() []section.Section
	dispatch func(func())
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	assets    Assets
	injection Injection
}

// NewScheduler creates a scheduler from opts.
func NewScheduler(opts Options) *Scheduler {
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		task:      timer.NewTask(opts.Clock),
		renderer:  opts.Renderer,
		sink:      opts.Sink,
		snapshot:  opts.Snapshot,
		dispatch:  dispatch,
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
		assets:    opts.Assets,
		injection: opts.Injection,
	}
}

// Schedule requests a render after delay, replacing any pending one.
func (s *Scheduler) Schedule(delay time.Duration) {
	s.setState(Scheduled)
	s.task.Schedule(delay, func() { s.dispatch(s.fire) })
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LatestRequest returns the most recently issued request id.
func (s *Scheduler) LatestRequest() uint64 { return s.seq.Latest() }

// SetAssets replaces the captured host assets.
func (s *Scheduler) SetAssets(a Assets) {
	s.mu.Lock()
	s.assets = a
	s.mu.Unlock()
}

// SetInjection replaces the host injection slots.
func (s *Scheduler) SetInjection(inj Injection) {
	s.mu.Lock()
	s.injection = inj
	s.mu.Unlock()
}

// Wait blocks until every in-flight server render has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Close cancels the pending render and any in-flight server request.
func (s *Scheduler) Close() {
	s.task.Cancel()
	s.cancel()
}

func (s *Scheduler) fire() {
	var sections []section.Section
	if s.snapshot != nil {
		sections = s.snapshot()
	}
	id := s.seq.Next()

	visible := Visible(sections)
	if s.renderer == nil || !NeedsServer(visible) {
		s.deliver(id, sections, nil)
		return
	}

	s.setState(Rendering)
	exports := section.ExportAll(visible)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		rendered, err := s.renderer.Render(ctx, exports)
		cancel()
		s.dispatch(func() { s.complete(id, sections, rendered, err) })
	}()
}

func (s *Scheduler) complete(id uint64, sections []section.Section, rendered *Rendered, err error) {
	if !s.seq.IsLatest(id) {
		return
	}
	if err != nil {
		log.Printf("[preview] server render %d failed, using local assembly: %v", id, err)
		rendered = nil
	}
	s.deliver(id, sections, rendered)
}

func (s *Scheduler) deliver(id uint64, sections []section.Section, rendered *Rendered) {
	s.mu.Lock()
	assets, inj := s.assets, s.injection
	s.state = Applied
	s.mu.Unlock()
	if s.sink != nil {
		s.sink.Apply(id, Assemble(sections, assets, inj, rendered))
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
