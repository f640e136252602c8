// Package theme builds the class-name vocabulary offered as completions
// from the stylesheets of the active theme.
package theme

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/pageblocks/internal/progress"
)

const (
	// MaxClasses caps the vocabulary.
	MaxClasses = 2000
	// MinClassLength drops single-letter utility names.
	MinClassLength = 2
)

// Patterns are the stylesheet globs scanned inside each theme directory.
var Patterns = []string{"style.css", "css/**/*.css", "assets/css/**/*.css"}

var classSelector = regexp.MustCompile(`(^|[^A-Za-z0-9_-])\.([A-Za-z_-][A-Za-z0-9_-]*)`)

// Files lists the stylesheets of dirs matching Patterns, without
// duplicates. Missing directories are skipped.
func Files(dirs []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		fsys := os.DirFS(dir)
		for _, pattern := range Patterns {
			matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("globbing %s in %s: %w", pattern, dir, err)
			}
			for _, m := range matches {
				path := filepath.Join(dir, filepath.FromSlash(m))
				if !seen[path] {
					seen[path] = true
					files = append(files, path)
				}
			}
		}
	}
	return files, nil
}

// Extract collects class names from css into set, stopping when set
// reaches limit. It reports whether the limit was reached.
func Extract(css string, set map[string]bool, limit int) bool {
	for _, m := range classSelector.FindAllStringSubmatch(css, -1) {
		name := m[2]
		if len(name) < MinClassLength {
			continue
		}
		set[name] = true
		if len(set) >= limit {
			return true
		}
	}
	return false
}

// Scan reads every stylesheet in files and returns the sorted class
// vocabulary. Unreadable files are skipped.
func Scan(fsys fs.FS, files []string, rep progress.Reporter) []string {
	set := make(map[string]bool)
	if rep != nil {
		rep.Start(len(files))
		defer rep.Finish()
	}
	for i, f := range files {
		if rep != nil {
			rep.Update(i+1, filepath.Base(f))
		}
		data, err := readFile(fsys, f)
		if err != nil {
			log.Printf("[theme] skipping %s: %v", f, err)
			continue
		}
		if Extract(string(data), set, MaxClasses) {
			break
		}
	}
	classes := make([]string, 0, len(set))
	for c := range set {
		classes = append(classes, c)
	}
	SortNatural(classes)
	return classes
}

func readFile(fsys fs.FS, name string) ([]byte, error) {
	if fsys == nil {
		return os.ReadFile(name)
	}
	return fs.ReadFile(fsys, name)
}

// SortNatural orders names case-insensitively with digit runs compared
// by numeric value, so col-2 sorts before col-10.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return naturalLess(strings.ToLower(names[i]), strings.ToLower(names[j]))
	})
}

func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, ra := digitRun(a)
			nb, rb := digitRun(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			a, b = ra, rb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitRun(s string) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// Catalog caches the vocabulary of a set of theme directories and
// rebuilds it on demand.
type Catalog struct {
	dirs []string

	mu      sync.RWMutex
	classes []string
	built   bool
}

// NewCatalog creates a catalog over dirs, child theme first.
func NewCatalog(dirs ...string) *Catalog {
	var kept []string
	seen := make(map[string]bool)
	for _, d := range dirs {
		if d != "" && !seen[d] {
			seen[d] = true
			kept = append(kept, d)
		}
	}
	return &Catalog{dirs: kept}
}

// Dirs returns the scanned theme directories.
func (c *Catalog) Dirs() []string { return c.dirs }

// Classes returns the cached vocabulary, building it on first use.
func (c *Catalog) Classes() []string {
	c.mu.RLock()
	if c.built {
		out := c.classes
		c.mu.RUnlock()
		return out
	}
	c.mu.RUnlock()
	if _, err := c.Rebuild(nil); err != nil {
		log.Printf("[theme] building class catalog: %v", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classes
}

// Rebuild rescans the theme stylesheets and returns the class count.
func (c *Catalog) Rebuild(rep progress.Reporter) (int, error) {
	files, err := Files(c.dirs)
	if err != nil {
		c.mu.Lock()
		c.built = true
		c.mu.Unlock()
		return 0, err
	}
	classes := Scan(nil, files, rep)
	c.mu.Lock()
	c.classes, c.built = classes, true
	c.mu.Unlock()
	return len(classes), nil
}
