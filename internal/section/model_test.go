package section

import (
	"reflect"
	"testing"
)

func rawSections(contents ...string) []any {
	out := make([]any, len(contents))
	for i, c := range contents {
		out[i] = map[string]any{"content": c}
	}
	return out
}

func TestHydrateInvalidInputYieldsDefault(t *testing.T) {
	inputs := []any{nil, []any{}, "not an array", 42, map[string]any{"content": "x"}, []any{"a", 3}}
	for _, in := range inputs {
		m := NewModel()
		m.Hydrate(in)
		if m.Len() != 1 {
			t.Errorf("Hydrate(%v): expected 1 section, got %d", in, m.Len())
		}
		if m.SelectedIndex() != 0 {
			t.Errorf("Hydrate(%v): expected selection 0, got %d", in, m.SelectedIndex())
		}
		if !reflect.DeepEqual(m.Selected(), Default()) {
			t.Errorf("Hydrate(%v): expected default section, got %+v", in, m.Selected())
		}
	}
}

func TestHydrateNormalizesEntries(t *testing.T) {
	m := NewModel()
	m.Hydrate([]any{
		map[string]any{"content": "<p>a</p>", "css": 12, "jsLocation": "inline", "format": 1.0, "extra": "ignored"},
		map[string]any{"js": "x()", "jsLocation": "bogus", "phpExec": true, "collapsed": true},
	})
	if m.Len() != 2 {
		t.Fatalf("expected 2 sections, got %d", m.Len())
	}
	first, _ := m.At(0)
	if first.Content != "<p>a</p>" || first.CSS != "" || first.JSLocation != JSInline || !first.Format {
		t.Errorf("unexpected first section: %+v", first)
	}
	second, _ := m.At(1)
	if second.JSLocation != JSFooter || !second.PHPExec || !second.Collapsed {
		t.Errorf("unexpected second section: %+v", second)
	}
}

func TestExportRoundTrip(t *testing.T) {
	m := NewModel()
	m.Hydrate([]any{
		map[string]any{"content": "<h1>A</h1>", "css": "h1{}", "js": "a()", "jsLocation": "inline", "format": true},
		map[string]any{"content": "B", "phpExec": true},
	})
	first := m.Export()

	again := NewModel()
	again.Hydrate(ToRaw(first))
	if !reflect.DeepEqual(again.Export(), first) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", again.Export(), first)
	}
}

func TestDeleteLastSectionLeavesDefault(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections("only"))
	m.Delete(0)
	if m.Len() != 1 {
		t.Fatalf("expected 1 section, got %d", m.Len())
	}
	if m.Selected().Content != "" {
		t.Errorf("expected fresh default section, got %+v", m.Selected())
	}
	if m.SelectedIndex() != 0 {
		t.Errorf("expected selection 0, got %d", m.SelectedIndex())
	}
}

func TestDeleteClampsSelection(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections("a", "b", "c"))
	m.Select(2)
	m.Delete(2)
	if m.SelectedIndex() != 1 {
		t.Errorf("expected selection 1, got %d", m.SelectedIndex())
	}
}

func TestDuplicateInsertsAfterAndSelectsCopy(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections(`<section id="hero">A</section>`, "B"))
	m.Duplicate(0)

	if m.Len() != 3 {
		t.Fatalf("expected 3 sections, got %d", m.Len())
	}
	if m.SelectedIndex() != 1 {
		t.Errorf("expected selection 1, got %d", m.SelectedIndex())
	}
	dup, _ := m.At(1)
	if dup.Content != `<section id="hero-copy">A</section>` {
		t.Errorf("unexpected duplicate content %q", dup.Content)
	}
	last, _ := m.At(2)
	if last.Content != "B" {
		t.Errorf("expected B shifted to index 2, got %q", last.Content)
	}
}

func TestDuplicateKeepsExistingCopySuffix(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections(`<div id='x-copy'></div>`))
	m.Duplicate(0)
	dup, _ := m.At(1)
	if dup.Content != `<div id='x-copy'></div>` {
		t.Errorf("unexpected duplicate content %q", dup.Content)
	}
}

func TestDuplicatePlainContent(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections("<h1>A</h1>", "<h1>B</h1>"))
	m.Duplicate(0)
	dup, _ := m.At(1)
	orig, _ := m.At(0)
	if dup != orig {
		t.Errorf("expected copy of index 0, got %+v", dup)
	}
}

func TestReorderPreservesSelectedSection(t *testing.T) {
	tests := []struct {
		name     string
		selected int
		from, to int
		want     int
	}{
		{"selected moves", 1, 1, 3, 3},
		{"down across selection", 2, 0, 3, 1},
		{"up across selection", 2, 4, 0, 3},
		{"unaffected", 0, 2, 4, 0},
		{"into selection slot from above", 2, 0, 2, 1},
		{"into selection slot from below", 2, 4, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel()
			m.Hydrate(rawSections("a", "b", "c", "d", "e"))
			m.Select(tt.selected)
			before := m.Selected()

			m.Reorder(tt.from, tt.to)

			if m.SelectedIndex() != tt.want {
				t.Errorf("selected index = %d, want %d", m.SelectedIndex(), tt.want)
			}
			if m.Selected() != before {
				t.Errorf("selected section changed: got %q, want %q", m.Selected().Content, before.Content)
			}
		})
	}
}

func TestReorderNoOps(t *testing.T) {
	var changes int
	m := NewModel()
	m.Hydrate(rawSections("a", "b"))
	m.SetObserver(ObserverFunc(func(Change) { changes++ }))

	m.Reorder(1, 1)
	m.Reorder(-1, 0)
	m.Reorder(0, 2)

	if changes != 0 {
		t.Errorf("expected no notifications, got %d", changes)
	}
	if got := m.Export(); got[0].Content != "a" || got[1].Content != "b" {
		t.Errorf("order changed: %+v", got)
	}
}

func TestAddInsertsAfterIndex(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections("a", "b"))
	m.Add(0)
	if m.Len() != 3 || m.SelectedIndex() != 1 {
		t.Fatalf("unexpected state len=%d selected=%d", m.Len(), m.SelectedIndex())
	}
	m.Add(-1)
	if m.SelectedIndex() != 3 {
		t.Errorf("expected append at 3, got %d", m.SelectedIndex())
	}
}

func TestToggleCollapseAndVisibleCount(t *testing.T) {
	m := NewModel()
	m.Hydrate(rawSections("a", "b"))
	m.ToggleCollapse(1)
	if m.VisibleCount() != 1 {
		t.Errorf("expected 1 visible, got %d", m.VisibleCount())
	}
	if exp := m.Export(); len(exp) != 2 {
		t.Errorf("collapsed section must stay in export, got %d", len(exp))
	}
}

func TestUpdateFieldTargetsSelection(t *testing.T) {
	var got []Change
	m := NewModel()
	m.Hydrate(rawSections("a", "b"))
	m.SetObserver(ObserverFunc(func(c Change) { got = append(got, c) }))
	m.Select(1)
	m.UpdateField(FieldCSS, ".b{}")
	m.UpdateField(FieldJSLocation, "inline")
	m.UpdateField(Field("unknown"), "x")

	s, _ := m.At(1)
	if s.CSS != ".b{}" || s.JSLocation != JSInline {
		t.Errorf("unexpected section %+v", s)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(got))
	}
	if got[0].Kind != ChangeSelect || got[0].Mutating() {
		t.Errorf("select must not count as mutation: %+v", got[0])
	}
	if got[1].Field != FieldCSS || got[1].Structural() {
		t.Errorf("unexpected field change %+v", got[1])
	}
}

func TestLengthNeverZero(t *testing.T) {
	m := NewModel()
	ops := []func(){
		func() { m.Delete(0) },
		func() { m.Add(0) },
		func() { m.Delete(1) },
		func() { m.Delete(0) },
		func() { m.Hydrate(nil) },
		func() { m.Delete(0) },
		func() { m.Duplicate(0) },
		func() { m.Delete(0) },
		func() { m.Delete(0) },
	}
	for i, op := range ops {
		op()
		if m.Len() == 0 {
			t.Fatalf("op %d left an empty model", i)
		}
		if m.SelectedIndex() < 0 || m.SelectedIndex() >= m.Len() {
			t.Fatalf("op %d left selection %d out of range", i, m.SelectedIndex())
		}
	}
}
