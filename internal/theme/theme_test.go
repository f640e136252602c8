package theme

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtract(t *testing.T) {
	set := make(map[string]bool)
	Extract(".hero{} .a{} nav > .btn-primary:hover{} .x1.y2{} 1.5em .-neg{}", set, MaxClasses)
	for _, want := range []string{"hero", "btn-primary", "x1", "-neg"} {
		if !set[want] {
			t.Errorf("missing %q in %v", want, set)
		}
	}
	if set["a"] {
		t.Error("single-letter class kept")
	}
	if set["5em"] || set["y2"] {
		t.Errorf("class matched after a word character: %v", set)
	}
}

func TestExtractStopsAtLimit(t *testing.T) {
	set := make(map[string]bool)
	if !Extract(".aa{} .bb{} .cc{}", set, 2) {
		t.Error("expected the limit to be reported")
	}
	if len(set) != 2 {
		t.Errorf("set = %v", set)
	}
}

func TestSortNatural(t *testing.T) {
	names := []string{"col-10", "Col-2", "btn", "col-1", "Alpha"}
	SortNatural(names)
	want := []string{"Alpha", "btn", "col-1", "Col-2", "col-10"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestScanFS(t *testing.T) {
	fsys := fstest.MapFS{
		"style.css":       {Data: []byte(".site-header{} .hero{}")},
		"css/grid.css":    {Data: []byte(".col-2{} .col-10{} .hero{}")},
		"css/missing.css": {Data: nil},
	}
	got := Scan(fsys, []string{"style.css", "css/grid.css", "css/nope.css"}, nil)
	want := []string{"col-2", "col-10", "hero", "site-header"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFilesAndCatalog(t *testing.T) {
	child := t.TempDir()
	parent := t.TempDir()
	writeFile(t, filepath.Join(child, "style.css"), ".child-only{}")
	writeFile(t, filepath.Join(child, "css", "deep", "a.css"), ".deep-class{}")
	writeFile(t, filepath.Join(child, "js", "ignored.css"), ".ignored{}")
	writeFile(t, filepath.Join(parent, "assets", "css", "b.CSS.css"), ".parent-class{}")

	files, err := Files([]string{child, parent, filepath.Join(child, "absent")})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %v", files)
	}

	cat := NewCatalog(child, parent, child)
	got := cat.Classes()
	want := []string{"child-only", "deep-class", "parent-class"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("classes = %v, want %v", got, want)
	}
}

func TestWatcherRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "style.css"), ".first{}")
	cat := NewCatalog(dir)
	if got := cat.Classes(); len(got) != 1 {
		t.Fatalf("classes = %v", got)
	}

	changed := make(chan int, 4)
	w, err := NewWatcher(cat, 20*time.Millisecond, func(n int) { changed <- n })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "style.css"), ".first{} .second{}")

	select {
	case n := <-changed:
		if n != 2 {
			t.Errorf("rebuilt with %d classes", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not rebuild")
	}
}
