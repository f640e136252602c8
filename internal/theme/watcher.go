package theme

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds a catalog when a stylesheet under its theme
// directories changes. Bursts of events are coalesced.
type Watcher struct {
	watcher  *fsnotify.Watcher
	catalog  *Catalog
	debounce time.Duration
	onChange func(count int)
	done     chan struct{}
	stop     sync.Once
}

// NewWatcher watches every theme directory of catalog recursively.
func NewWatcher(catalog *Catalog, debounce time.Duration, onChange func(int)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	w := &Watcher{
		watcher:  fsWatcher,
		catalog:  catalog,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, dir := range catalog.Dirs() {
		if err := w.addDirectoryRecursive(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addDirectoryRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	go func() {
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addDirectoryRecursive(event.Name); err != nil {
							log.Printf("[theme] watching %s: %v", event.Name, err)
						}
					}
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".css") {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				n, err := w.catalog.Rebuild(nil)
				if err != nil {
					log.Printf("[theme] rebuild failed: %v", err)
					continue
				}
				log.Printf("[theme] stylesheet changed, %d classes", n)
				if w.onChange != nil {
					w.onChange(n)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[theme] watch error: %v", err)
			case <-w.done:
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}
	}()
}

// Stop ends watching.
func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
