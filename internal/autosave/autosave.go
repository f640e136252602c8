package autosave

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/section"
	"github.com/ziadkadry99/pageblocks/internal/timer"
)

// DefaultInterval is the debounce between the last edit and the save.
const DefaultInterval = 5 * time.Second

// Options configures an Autosaver.
type Options struct {
	Store    Store
	Key      string
	Clock    timer.Clock
	Interval time.Duration
	// Snapshot returns the export-shaped sections. It is called on the
	// dispatch goroutine.
	Snapshot func() []section.Export
	// Dispatch re-enters the owner's event loop. Nil runs inline.
	Dispatch func(func())
}

// Autosaver saves the sections once edits have been quiet for the
// interval. Storage errors are logged and dropped.
type Autosaver struct {
	store    Store
	key      string
	clock    timer.Clock
	interval time.Duration
	snapshot func() []section.Export
	dispatch func(func())
	task     *timer.Task
}

// New creates an Autosaver from opts.
func New(opts Options) *Autosaver {
	clock := opts.Clock
	if clock == nil {
		clock = timer.Real()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Autosaver{
		store:    opts.Store,
		key:      opts.Key,
		clock:    clock,
		interval: interval,
		snapshot: opts.Snapshot,
		dispatch: dispatch,
		task:     timer.NewTask(clock),
	}
}

// Key returns the draft key.
func (a *Autosaver) Key() string { return a.key }

// Schedule (re)starts the debounce timer.
func (a *Autosaver) Schedule() {
	if a.store == nil || a.key == "" {
		return
	}
	a.task.Schedule(a.interval, func() { a.dispatch(a.SaveNow) })
}

// Pending reports whether a save is scheduled.
func (a *Autosaver) Pending() bool { return a.task.Pending() }

// Cancel drops a scheduled save.
func (a *Autosaver) Cancel() { a.task.Cancel() }

// SaveNow writes the current sections immediately.
func (a *Autosaver) SaveNow() {
	if a.store == nil || a.key == "" || a.snapshot == nil {
		return
	}
	snap := Snapshot{Sections: a.snapshot(), Timestamp: a.clock.Now().UnixMilli()}
	if err := a.store.Save(context.Background(), a.key, snap); err != nil {
		log.Printf("[autosave] save %s failed: %v", a.key, err)
	}
}

// Clear cancels any scheduled save and removes the stored draft.
func (a *Autosaver) Clear(ctx context.Context) {
	a.task.Cancel()
	if a.store == nil || a.key == "" {
		return
	}
	if err := a.store.Clear(ctx, a.key); err != nil {
		log.Printf("[autosave] clear %s failed: %v", a.key, err)
	}
}

// PendingDraft returns a recoverable draft for key, or nil. Drafts without
// sections and storage errors both yield nil.
func PendingDraft(ctx context.Context, store Store, key string) *Snapshot {
	if store == nil || key == "" {
		return nil
	}
	snap, err := store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[autosave] load %s failed: %v", key, err)
		}
		return nil
	}
	if len(snap.Sections) == 0 {
		return nil
	}
	return snap
}

// Resolve applies the user's recovery choice. Discarding clears the
// draft; restoring returns it.
func Resolve(ctx context.Context, store Store, key string, snap *Snapshot, restore bool) *Snapshot {
	if restore {
		return snap
	}
	if err := store.Clear(ctx, key); err != nil {
		log.Printf("[autosave] discard %s failed: %v", key, err)
	}
	return nil
}

// Prompt asks whether a found draft should be restored.
type Prompt interface {
	Confirm(ctx context.Context, snap Snapshot) (bool, error)
}

// PromptFunc adapts a function to Prompt.
type PromptFunc func(ctx context.Context, snap Snapshot) (bool, error)

func (f PromptFunc) Confirm(ctx context.Context, snap Snapshot) (bool, error) { return f(ctx, snap) }

// Recover checks for a draft and, when one exists, asks prompt. It
// returns the snapshot to hydrate from, or nil to use the host payload.
// A failed prompt keeps the draft in place.
func Recover(ctx context.Context, store Store, key string, prompt Prompt) *Snapshot {
	snap := PendingDraft(ctx, store, key)
	if snap == nil {
		return nil
	}
	restore, err := prompt.Confirm(ctx, *snap)
	if err != nil {
		log.Printf("[autosave] recovery prompt for %s failed: %v", key, err)
		return nil
	}
	return Resolve(ctx, store, key, snap, restore)
}
