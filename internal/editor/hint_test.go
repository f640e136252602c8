package editor

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/ziadkadry99/pageblocks/internal/section"
)

func TestHintContext(t *testing.T) {
	tests := []struct {
		line string
		ch   int
		ok   bool
		frag string
		from int
	}{
		{`<div class="btn Pri`, 19, true, "pri", 16},
		{`<div class="`, 12, true, "", 12},
		{`<div class='a b`, 15, true, "b", 14},
		{`<div class="a">`, 15, false, "", 0},
		{`<div id="x`, 10, false, "", 0},
		{`<div class="abc`, 14, true, "ab", 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s@%d", tt.line, tt.ch), func(t *testing.T) {
			h, ok := HintContext(tt.line, tt.ch)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if h.Fragment != tt.frag || h.From != tt.from || h.To != tt.ch {
				t.Errorf("hint = %+v, want fragment %q from %d", h, tt.frag, tt.from)
			}
		})
	}
}

func TestSuggestPrefersPrefix(t *testing.T) {
	vocab := NewVocabulary([]string{"btn", ".btn-primary", "nav-btn", "card", "btn"})
	if got := Suggest(vocab, "BTN"); !reflect.DeepEqual(got, []string{"btn", "btn-primary"}) {
		t.Errorf("prefix suggestions = %v", got)
	}
	if got := Suggest(vocab, "av"); !reflect.DeepEqual(got, []string{"nav-btn"}) {
		t.Errorf("substring suggestions = %v", got)
	}
	if got := Suggest(vocab, "zzz"); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSuggestCap(t *testing.T) {
	var classes []string
	for i := 0; i < 500; i++ {
		classes = append(classes, fmt.Sprintf("c%d", i))
	}
	if got := Suggest(NewVocabulary(classes), "c"); len(got) != MaxSuggestions {
		t.Errorf("expected %d suggestions, got %d", MaxSuggestions, len(got))
	}
}

func TestNaturalOrder(t *testing.T) {
	vocab := NewVocabulary([]string{"col-10", "Col-2", "col-1", "alpha"})
	want := Vocabulary{"alpha", "col-1", "Col-2", "col-10"}
	if !reflect.DeepEqual(vocab, want) {
		t.Errorf("vocab = %v, want %v", vocab, want)
	}
}

func TestClassesFromSections(t *testing.T) {
	sections := []section.Section{
		{Content: `<div class="hero x"><span class='hero-title'></span></div>`},
		{Content: `<p class="lead hero">`},
		{},
	}
	got := ClassesFromSections(sections)
	want := Vocabulary{"hero", "hero-title", "lead"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("classes = %v, want %v", got, want)
	}
	h, ok := CSSHintContext(".he", 3)
	if !ok || h.Fragment != "he" || h.From != 1 {
		t.Fatalf("css hint = %+v %v", h, ok)
	}
	if s := SuggestPrefix(got, h.Fragment); !reflect.DeepEqual(s, []string{"hero", "hero-title"}) {
		t.Errorf("css suggestions = %v", s)
	}
}

func TestShouldIsolate(t *testing.T) {
	tests := []struct {
		ev   KeyEvent
		want bool
	}{
		{KeyEvent{Key: "Tab"}, true},
		{KeyEvent{Key: " ", Ctrl: true}, true},
		{KeyEvent{Key: "z", Meta: true}, true},
		{KeyEvent{Key: "Y", Ctrl: true}, true},
		{KeyEvent{Key: "z"}, false},
		{KeyEvent{Key: "s", Ctrl: true}, false},
	}
	for _, tt := range tests {
		if got := ShouldIsolate(tt.ev); got != tt.want {
			t.Errorf("ShouldIsolate(%s) = %v, want %v", tt.ev, got, tt.want)
		}
	}
	if s := (KeyEvent{Key: "Up", Alt: true}).String(); s != "alt+up" {
		t.Errorf("String() = %q", s)
	}
}
