package editor

import (
	"regexp"

	"github.com/ziadkadry99/pageblocks/internal/section"
)

var templateDirective = regexp.MustCompile(`(?i)<\?(?:php|=)?`)

// Tab names an editor tab.
type Tab string

const (
	TabHTML Tab = "html"
	TabCSS  Tab = "css"
	TabJS   Tab = "js"
)

// Tabs lists the editor tabs in display order.
var Tabs = []Tab{TabHTML, TabCSS, TabJS}

// Field returns the section field edited by the tab.
func (t Tab) Field() section.Field {
	switch t {
	case TabCSS:
		return section.FieldCSS
	case TabJS:
		return section.FieldJS
	default:
		return section.FieldContent
	}
}

// TabOf returns the tab that edits field. Flag fields have no tab.
func TabOf(field section.Field) (Tab, bool) {
	switch field {
	case section.FieldContent:
		return TabHTML, true
	case section.FieldCSS:
		return TabCSS, true
	case section.FieldJS:
		return TabJS, true
	}
	return "", false
}

// ParseTab maps a wire name onto a tab. Unknown names map to html.
func ParseTab(s string) Tab {
	switch Tab(s) {
	case TabCSS, TabJS:
		return Tab(s)
	}
	return TabHTML
}

// FieldWriter is the slice of the section model a binding needs.
type FieldWriter interface {
	Value(section.Field) string
	UpdateField(section.Field, any)
}

// UserEdit is text typed by the user into a surface. It flows editor to
// model.
type UserEdit struct {
	Tab   Tab    `json:"tab"`
	Value string `json:"value"`
}

// ModelPush is a model value written into a surface. It flows model to
// editor and never reaches the model again.
type ModelPush struct {
	Tab   Tab    `json:"tab"`
	Value string `json:"value"`
}

// Binding connects one surface to one section field. It is the single
// writer of its surface.
type Binding struct {
	tab     Tab
	surface Surface
	model   FieldWriter
}

func newBinding(tab Tab, surface Surface, model FieldWriter) *Binding {
	return &Binding{tab: tab, surface: surface, model: model}
}

func (b *Binding) Tab() Tab { return b.tab }

// Surface exposes the bound surface for read access.
func (b *Binding) Surface() Surface { return b.surface }

// Value returns the current surface content.
func (b *Binding) Value() string { return b.surface.Value() }

// HandleUserEdit mirrors a user edit into the surface and forwards it to
// the model. Edits equal to the model value are dropped and report
// false.
func (b *Binding) HandleUserEdit(e UserEdit) bool {
	if b.surface.Value() != e.Value {
		b.surface.SetValue(e.Value)
	}
	b.updateMode(e.Value)
	field := b.tab.Field()
	if b.model.Value(field) == e.Value {
		return false
	}
	b.model.UpdateField(field, e.Value)
	return true
}

// Push writes a model value into the surface. It reports whether the
// surface content changed.
func (b *Binding) Push(p ModelPush) bool {
	b.updateMode(p.Value)
	if b.surface.Value() == p.Value {
		return false
	}
	b.surface.SetValue(p.Value)
	return true
}

// Replace substitutes text for the given span, or for the whole value
// when sel is nil, and routes the result through HandleUserEdit.
func (b *Binding) Replace(sel *Selection, text string) bool {
	if sel == nil {
		return b.HandleUserEdit(UserEdit{Tab: b.tab, Value: text})
	}
	b.surface.Select(*sel)
	b.surface.ReplaceSelection(text)
	return b.HandleUserEdit(UserEdit{Tab: b.tab, Value: b.surface.Value()})
}

// SelectedText returns the selected text, or "" if the selection is empty.
func (b *Binding) SelectedText() (string, Selection) {
	sel := clampSelection(b.surface.Selection(), len(b.surface.Value()))
	if sel.Empty() {
		return "", sel
	}
	return b.surface.Value()[sel.Start:sel.End], sel
}

func (b *Binding) updateMode(value string) {
	if b.tab != TabHTML {
		return
	}
	if r, ok := b.surface.(*RichSurface); ok {
		r.SetMode(PreferredMode(value))
	}
}

// Set holds one binding per tab and tracks which tab has focus.
type Set struct {
	bindings map[Tab]*Binding
	active   Tab
	rich     bool
}

// NewSet binds a fresh surface per tab to model.
func NewSet(model FieldWriter, rich bool) *Set {
	s := &Set{bindings: make(map[Tab]*Binding, len(Tabs)), active: TabHTML, rich: rich}
	for _, tab := range Tabs {
		s.bindings[tab] = newBinding(tab, NewSurface(rich), model)
	}
	return s
}

// Rich reports whether the set uses code-editor surfaces.
func (s *Set) Rich() bool { return s.rich }

// Binding returns the binding for tab.
func (s *Set) Binding(tab Tab) *Binding { return s.bindings[ParseTab(string(tab))] }

// Focus marks tab as active.
func (s *Set) Focus(tab Tab) {
	tab = ParseTab(string(tab))
	s.active = tab
	s.bindings[tab].surface.Focus()
}

// ActiveTab returns the focused tab.
func (s *Set) ActiveTab() Tab { return s.active }

// Active returns the binding of the focused tab.
func (s *Set) Active() *Binding { return s.bindings[s.active] }

// HandleUserEdit dispatches an edit to the binding of its tab.
func (s *Set) HandleUserEdit(e UserEdit) bool {
	return s.Binding(e.Tab).HandleUserEdit(e)
}

// Sync pushes the model values of the selected section into every
// surface and returns the pushes that changed a surface.
func (s *Set) Sync(model FieldWriter) []ModelPush {
	var changed []ModelPush
	for _, tab := range Tabs {
		p := ModelPush{Tab: tab, Value: model.Value(tab.Field())}
		if s.bindings[tab].Push(p) {
			changed = append(changed, p)
		}
	}
	return changed
}
