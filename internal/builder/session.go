// Package builder runs one editing session. Session owns the section
// model and every component that reacts to it, and serializes all
// mutations and asynchronous completions through a single event loop.
package builder

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/apply"
	"github.com/ziadkadry99/pageblocks/internal/assist"
	"github.com/ziadkadry99/pageblocks/internal/autosave"
	"github.com/ziadkadry99/pageblocks/internal/console"
	"github.com/ziadkadry99/pageblocks/internal/editor"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/message"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/section"
	"github.com/ziadkadry99/pageblocks/internal/shell"
	"github.com/ziadkadry99/pageblocks/internal/timer"
)

// ErrClosed is returned by Do after the session stopped.
var ErrClosed = errors.New("builder session closed")

// cursorScrollDelay debounces preview scrolling while the HTML cursor
// moves.
const cursorScrollDelay = 400 * time.Millisecond

// Config describes the document being edited and the host around it.
type Config struct {
	DocumentID   string
	PageTemplate string
	// Sections is the host hydration payload, any JSON-decoded value.
	Sections any
	PageURL  string

	// Embedded sessions talk to a parent document through Post.
	Embedded     bool
	ParentOrigin string
	Post         message.Post
	// ParentApply is a direct parent callback, tried first on apply.
	ParentApply apply.Callback

	// Client reaches the host service. Renderer, Generator and Runner
	// default to HTTP implementations on it.
	Client    *hostapi.Client
	Renderer  preview.Renderer
	Generator assist.Generator
	Runner    console.Runner

	Drafts           autosave.Store
	Clock            timer.Clock
	Delays           preview.Delays
	AutosaveInterval time.Duration
	ApplyMinInterval time.Duration

	Assets      preview.Assets
	AssetFilter *preview.AssetFilter
	Injection   preview.Injection
	// Classes returns the theme class vocabulary for completions.
	Classes func() editor.Vocabulary

	RichEditors    bool
	ConsoleEnabled bool
	KeyMap         *shell.KeyMap
}

// Emitter receives view updates, always on the session loop.
type Emitter func(View)

// Session is one live builder.
type Session struct {
	cfg     Config
	emit    Emitter
	model   *section.Model
	editors *editor.Set
	layout  *shell.Layout
	keys    shell.KeyMap
	port    *message.Port
	preview *preview.Scheduler
	drafts  *autosave.Autosaver
	apply   *apply.Protocol
	ai      *assist.Bridge
	console *console.Session

	pageTemplate string
	recovery     *autosave.Snapshot
	// hostInit holds sections a parent sent while the draft prompt was
	// open. They replace the configured sections if the draft is
	// discarded.
	hostInit any
	// restored is set when a draft was restored and the parent has not
	// yet answered the ready message.
	restored bool
	delays   preview.Delays
	scroll   *timer.Task

	queue   chan func()
	done    chan struct{}
	stop    sync.Once
	running atomic.Bool
}

// New wires a session. Call Start to run its loop.
func New(cfg Config, emit Emitter) *Session {
	if emit == nil {
		emit = func(View) {}
	}
	if cfg.Clock == nil {
		cfg.Clock = timer.Real()
	}
	s := &Session{
		cfg:          cfg,
		emit:         emit,
		model:        section.NewModel(),
		layout:       shell.NewLayout(cfg.PageTemplate, cfg.ConsoleEnabled),
		keys:         shell.DefaultKeyMap(),
		pageTemplate: cfg.PageTemplate,
		delays:       cfg.Delays,
		scroll:       timer.NewTask(cfg.Clock),
		queue:        make(chan func(), 64),
		done:         make(chan struct{}),
	}
	if s.delays == (preview.Delays{}) {
		s.delays = preview.DefaultDelays()
	}
	if cfg.KeyMap != nil {
		s.keys = *cfg.KeyMap
	}
	s.editors = editor.NewSet(s.model, cfg.RichEditors)
	s.port = message.NewPort(cfg.ParentOrigin, cfg.Embedded, cfg.Post)

	renderer := cfg.Renderer
	if renderer == nil && cfg.Client.Configured() && cfg.DocumentID != "" {
		renderer = preview.NewHTTPRenderer(cfg.Client, cfg.DocumentID)
	}
	s.preview = preview.NewScheduler(preview.Options{
		Clock:     cfg.Clock,
		Renderer:  renderer,
		Sink:      preview.SinkFunc(s.showPreview),
		Assets:    cfg.Assets,
		Injection: cfg.Injection,
		Snapshot:  s.model.Sections,
		Dispatch:  s.post,
	})

	s.drafts = autosave.New(autosave.Options{
		Store:    cfg.Drafts,
		Key:      autosave.Key(cfg.DocumentID),
		Clock:    cfg.Clock,
		Interval: cfg.AutosaveInterval,
		Snapshot: s.model.Export,
		Dispatch: s.post,
	})

	s.apply = apply.New(apply.Options{
		Transports: []apply.Transport{
			&apply.DirectCall{Callback: cfg.ParentApply},
			&apply.MessageTransport{Port: s.port},
			&apply.NetworkTransport{Client: cfg.Client, DocumentID: cfg.DocumentID},
		},
		Clock:       cfg.Clock,
		MinInterval: cfg.ApplyMinInterval,
		Dispatch:    s.post,
		Hooks: apply.Hooks{
			Snapshot: func() apply.Payload {
				return apply.Payload{Sections: s.model.Export(), PageTemplate: s.pageTemplate}
			},
			Applied: s.applied,
			Failed:  s.alert,
			Status:  func(st apply.Status) { s.emit(View{Kind: ViewStatus, Status: st}) },
		},
	})

	generator := cfg.Generator
	if generator == nil {
		generator = &assist.HTTPGenerator{Client: cfg.Client}
	}
	s.ai = assist.NewBridge(assist.BridgeOptions{
		Editors:   s.editors,
		Generator: generator,
		PageURL:   cfg.PageURL,
		Dispatch:  s.post,
		Hooks: assist.Hooks{
			Applied: s.aiApplied,
			Failed:  s.alert,
			Busy:    func(b bool) { s.emit(View{Kind: ViewAI, AI: &AIView{Busy: b, Selection: s.ai.Selection()}}) },
		},
	})

	if cfg.ConsoleEnabled {
		runner := cfg.Runner
		if runner == nil {
			runner = &console.HTTPRunner{Client: cfg.Client}
		}
		s.console = console.NewSession(console.SessionOptions{
			Runner:   runner,
			Dispatch: s.post,
			Output: func(l console.Line) {
				s.emit(View{Kind: ViewConsole, Console: &ConsoleView{Line: &l, Busy: s.console.Busy(), Cwd: s.console.Cwd()}})
			},
			Busy: func(b bool) {
				s.emit(View{Kind: ViewConsole, Console: &ConsoleView{Busy: b, Cwd: s.console.Cwd()}})
			},
		})
	}

	s.model.SetObserver(section.ObserverFunc(s.modelChanged))
	return s
}

// Start runs the event loop until ctx is done or Close is called, then
// performs startup: draft recovery or hydration, and the ready message.
func (s *Session) Start(ctx context.Context) {
	s.running.Store(true)
	go s.loop(ctx)
	s.post(s.boot)
}

func (s *Session) loop(ctx context.Context) {
	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case f := <-s.queue:
			f()
		}
	}
}

// post queues f on the loop without waiting. Before Start, f runs
// inline.
func (s *Session) post(f func()) {
	if !s.running.Load() {
		f()
		return
	}
	select {
	case s.queue <- f:
	case <-s.done:
	}
}

// Do runs f on the loop and waits for it. It must not be called from
// the loop itself.
func (s *Session) Do(f func()) error {
	if !s.running.Load() {
		f()
		return nil
	}
	ran := make(chan struct{})
	select {
	case s.queue <- func() { f(); close(ran) }:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Close stops the loop and cancels pending timers.
func (s *Session) Close() {
	s.stop.Do(func() { close(s.done) })
}

// Done is closed once the session stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) shutdown() {
	s.Close()
	s.preview.Close()
	s.drafts.Cancel()
	s.scroll.Cancel()
	s.apply.Close()
}

// Wait blocks until every in-flight network call of the session's
// components has returned.
func (s *Session) Wait() {
	s.preview.Wait()
	s.apply.Wait()
	s.ai.Wait()
	if s.console != nil {
		s.console.Wait()
	}
}

func (s *Session) boot() {
	ctx := context.Background()
	if snap := autosave.PendingDraft(ctx, s.cfg.Drafts, s.drafts.Key()); snap != nil {
		s.recovery = snap
		s.emit(View{Kind: ViewRecovery, Recovery: &RecoveryView{Timestamp: snap.Timestamp, Sections: len(snap.Sections)}})
	} else {
		s.model.Hydrate(s.cfg.Sections)
	}
	s.emit(View{Kind: ViewLayout, Layout: s.layout})
	if s.recovery == nil {
		s.announceReady()
	}
}

// announceReady tells the parent the builder can take an init message.
// It is held back while a draft decision is outstanding.
func (s *Session) announceReady() {
	if !s.port.Embedded() {
		return
	}
	if err := s.port.Send(message.Ready{DocumentID: s.cfg.DocumentID}); err != nil {
		log.Printf("[builder] ready message not sent: %v", err)
	}
}

// Model exposes the section model. Use it only inside Do.
func (s *Session) Model() *section.Model { return s.model }

// Layout exposes the layout state. Use it only inside Do.
func (s *Session) Layout() *shell.Layout { return s.layout }

// PageTemplate returns the template sent with the next apply.
func (s *Session) PageTemplate() string { return s.pageTemplate }

// Recovering reports whether a draft decision is outstanding.
func (s *Session) Recovering() bool { return s.recovery != nil }

// Recover resolves a pending draft prompt.
func (s *Session) Recover(restore bool) {
	snap := s.recovery
	if snap == nil {
		return
	}
	s.recovery = nil
	host := s.cfg.Sections
	if s.hostInit != nil {
		host, s.hostInit = s.hostInit, nil
	}
	ctx := context.Background()
	if kept := autosave.Resolve(ctx, s.cfg.Drafts, s.drafts.Key(), snap, restore); kept != nil {
		s.model.HydrateExports(kept.Sections)
		s.restored = s.port.Embedded()
	} else {
		s.model.Hydrate(host)
	}
	s.announceReady()
}

func (s *Session) modelChanged(c section.Change) {
	s.emitList()
	if c.Kind != section.ChangeField {
		s.syncEditors()
	} else if c.Field != section.FieldContent && c.Field != section.FieldCSS && c.Field != section.FieldJS {
		s.emitFields()
	}
	if !c.Mutating() {
		return
	}
	s.preview.Schedule(s.delays.For(c))
	if c.Kind != section.ChangeHydrate {
		s.drafts.Schedule()
	}
}

func (s *Session) emitList() {
	sections := s.model.Sections()
	metas := section.DescribeAll(sections)
	s.emit(View{Kind: ViewList, List: &ListView{
		Items:    metas,
		Selected: s.model.SelectedIndex(),
		Visible:  s.model.VisibleCount(),
		Active:   metas[s.model.SelectedIndex()],
	}})
}

func (s *Session) syncEditors() {
	for _, p := range s.editors.Sync(s.model) {
		s.emit(View{Kind: ViewEditor, Editor: &p})
	}
	s.emitFields()
}

func (s *Session) emitFields() {
	sel := s.model.Selected()
	s.emit(View{Kind: ViewFields, Fields: &FieldsView{JSLocation: sel.JSLocation, Format: sel.Format, PHPExec: sel.PHPExec}})
}

func (s *Session) showPreview(id uint64, doc string) {
	s.emit(View{Kind: ViewPreview, Preview: &PreviewView{RequestID: id, Document: doc, Width: s.layout.Viewport.Width()}})
}

func (s *Session) alert(msg string) {
	s.emit(View{Kind: ViewAlert, Message: msg})
}

func (s *Session) applied(out apply.Outcome) {
	if out.Echo != nil {
		s.model.HydrateExports(out.Echo)
	}
	s.drafts.Clear(context.Background())
	s.restored = false
	log.Printf("[builder] document %s applied via %s", s.cfg.DocumentID, out.Transport)
}

func (s *Session) aiApplied(tabs []editor.Tab) {
	for _, tab := range tabs {
		s.emit(View{Kind: ViewEditor, Editor: &editor.ModelPush{Tab: tab, Value: s.editors.Binding(tab).Value()}})
	}
	s.layout.AIPromptOpen = false
	s.emit(View{Kind: ViewLayout, Layout: s.layout})
	s.preview.Schedule(0)
}

func (s *Session) captureAssets(page, baseURL string) {
	if strings.TrimSpace(page) == "" {
		return
	}
	host, err := preview.ParseHostPage(strings.NewReader(page), baseURL)
	if err != nil {
		log.Printf("[builder] host page not captured: %v", err)
		return
	}
	filter := preview.DefaultAssetFilter()
	if s.cfg.AssetFilter != nil {
		filter = *s.cfg.AssetFilter
	}
	s.preview.SetAssets(preview.CollectAssets(host, filter))
	s.preview.Schedule(0)
}
