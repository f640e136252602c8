// Package editor binds code-editor surfaces to section fields.
package editor

import "strings"

// Selection is a half-open byte range [Start, End) into a surface value.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return s.End <= s.Start }

// Surface is the text buffer behind one editor tab. Only a Binding
// writes to it.
type Surface interface {
	Value() string
	SetValue(string)
	Selection() Selection
	Select(Selection)
	ReplaceSelection(text string)
	Focus()
	Focused() bool
	Kind() string
}

const (
	KindRich  = "rich"
	KindPlain = "plain"
)

// NewSurface returns a rich surface when the host advertises a code
// editor, and a plain textarea fallback otherwise.
func NewSurface(rich bool) Surface {
	if rich {
		return &RichSurface{mode: ModeMixed}
	}
	return &PlainSurface{}
}

// PlainSurface is the textarea fallback.
type PlainSurface struct {
	value   string
	sel     Selection
	focused bool
}

func (p *PlainSurface) Value() string { return p.value }

func (p *PlainSurface) SetValue(v string) {
	p.value = v
	p.sel = Selection{Start: len(v), End: len(v)}
}

func (p *PlainSurface) Selection() Selection { return p.sel }

func (p *PlainSurface) Select(s Selection) { p.sel = clampSelection(s, len(p.value)) }

func (p *PlainSurface) ReplaceSelection(text string) {
	p.value = p.value[:p.sel.Start] + text + p.value[p.sel.End:]
	end := p.sel.Start + len(text)
	p.sel = Selection{Start: end, End: end}
}

func (p *PlainSurface) Focus()        { p.focused = true }
func (p *PlainSurface) Focused() bool { return p.focused }
func (p *PlainSurface) Kind() string  { return KindPlain }

// RichSurface is a code-editor buffer that tracks its syntax mode and
// can report the cursor as a line and column.
type RichSurface struct {
	PlainSurface
	mode Mode
}

func (r *RichSurface) Kind() string { return KindRich }

// Mode returns the syntax mode last chosen for the buffer.
func (r *RichSurface) Mode() Mode { return r.mode }

// SetMode switches the syntax mode.
func (r *RichSurface) SetMode(m Mode) { r.mode = m }

// Cursor returns the line containing the selection end and the byte
// column within it.
func (r *RichSurface) Cursor() (line string, ch int) {
	pos := r.sel.End
	start := strings.LastIndexByte(r.value[:pos], '\n') + 1
	end := strings.IndexByte(r.value[pos:], '\n')
	if end < 0 {
		end = len(r.value)
	} else {
		end += pos
	}
	return r.value[start:end], pos - start
}

func clampSelection(s Selection, n int) Selection {
	if s.Start < 0 {
		s.Start = 0
	}
	if s.End > n {
		s.End = n
	}
	if s.Start > s.End {
		s.Start = s.End
	}
	return s
}

// Mode is a syntax mode for the HTML tab.
type Mode string

const (
	ModeMixed    Mode = "htmlmixed"
	ModeTemplate Mode = "application/x-httpd-php"
)

// PreferredMode picks the template mode when content carries server
// template directives.
func PreferredMode(value string) Mode {
	if templateDirective.MatchString(value) {
		return ModeTemplate
	}
	return ModeMixed
}
