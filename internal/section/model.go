package section

// ChangeKind describes what a model mutation touched.
type ChangeKind string

const (
	ChangeHydrate   ChangeKind = "hydrate"
	ChangeAdd       ChangeKind = "add"
	ChangeDuplicate ChangeKind = "duplicate"
	ChangeDelete    ChangeKind = "delete"
	ChangeCollapse  ChangeKind = "collapse"
	ChangeReorder   ChangeKind = "reorder"
	ChangeField     ChangeKind = "field"
	ChangeSelect    ChangeKind = "select"
)

// Change is delivered to the observer after every operation that
// modified the model.
type Change struct {
	Kind  ChangeKind
	Index int
	Field Field
}

// Structural reports whether the change altered the list shape rather
// than a single field value.
func (c Change) Structural() bool {
	return c.Kind != ChangeField && c.Kind != ChangeSelect
}

// Mutating reports whether the change altered persisted data.
func (c Change) Mutating() bool {
	return c.Kind != ChangeSelect
}

// Observer receives model change notifications.
type Observer interface {
	ModelChanged(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

func (f ObserverFunc) ModelChanged(c Change) { f(c) }

// Model is the ordered section list and the selected index. It is not
// safe for concurrent use; the builder session serializes access.
type Model struct {
	sections []Section
	selected int
	observer Observer
}

// NewModel returns a model holding a single default section.
func NewModel() *Model {
	return &Model{sections: []Section{Default()}}
}

// SetObserver registers the change observer. Passing nil disables
// notifications.
func (m *Model) SetObserver(o Observer) { m.observer = o }

func (m *Model) notify(c Change) {
	if m.observer != nil {
		m.observer.ModelChanged(c)
	}
}

// Len returns the number of sections.
func (m *Model) Len() int { return len(m.sections) }

// SelectedIndex returns the selected index.
func (m *Model) SelectedIndex() int { return m.selected }

// Selected returns a copy of the selected section.
func (m *Model) Selected() Section { return m.sections[m.selected] }

// At returns a copy of the section at index.
func (m *Model) At(index int) (Section, bool) {
	if index < 0 || index >= len(m.sections) {
		return Section{}, false
	}
	return m.sections[index], true
}

// Sections returns a copy of all sections.
func (m *Model) Sections() []Section {
	out := make([]Section, len(m.sections))
	copy(out, m.sections)
	return out
}

// Export returns the export-shaped snapshot of all sections.
func (m *Model) Export() []Export { return ExportAll(m.sections) }

// VisibleCount returns the number of non-collapsed sections.
func (m *Model) VisibleCount() int {
	n := 0
	for _, s := range m.sections {
		if !s.Collapsed {
			n++
		}
	}
	return n
}

func (m *Model) clamp() {
	if m.selected >= len(m.sections) {
		m.selected = len(m.sections) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// Hydrate replaces every section with the normalized entries of raw.
func (m *Model) Hydrate(raw any) {
	sections, _ := NormalizeAll(raw)
	if len(sections) == 0 {
		sections = []Section{Default()}
	}
	m.sections = sections
	m.selected = 0
	m.notify(Change{Kind: ChangeHydrate})
}

// HydrateExports replaces every section with already exported records.
func (m *Model) HydrateExports(exports []Export) {
	m.Hydrate(ToRaw(exports))
}

// Add inserts a default section after afterIndex and selects it. A
// negative or out-of-range afterIndex appends.
func (m *Model) Add(afterIndex int) {
	at := afterIndex + 1
	if afterIndex < 0 || at > len(m.sections) {
		at = len(m.sections)
	}
	m.insert(at, Default())
	m.selected = at
	m.notify(Change{Kind: ChangeAdd, Index: at})
}

// Duplicate inserts a copy of the section at index right after it and
// moves the selection to the copy.
func (m *Model) Duplicate(index int) {
	if index < 0 || index >= len(m.sections) {
		return
	}
	dup := m.sections[index]
	dup.JSLocation = ParseJSLocation(string(dup.JSLocation))
	dup.Content = copyIDs(dup.Content)
	m.insert(index+1, dup)
	m.selected = index + 1
	m.notify(Change{Kind: ChangeDuplicate, Index: index + 1})
}

// Delete removes the section at index. Deleting the last section leaves
// a single default section in its place.
func (m *Model) Delete(index int) {
	if index < 0 || index >= len(m.sections) {
		return
	}
	m.sections = append(m.sections[:index], m.sections[index+1:]...)
	if len(m.sections) == 0 {
		m.sections = []Section{Default()}
	}
	m.clamp()
	m.notify(Change{Kind: ChangeDelete, Index: index})
}

// ToggleCollapse flips the collapsed flag of the section at index.
func (m *Model) ToggleCollapse(index int) {
	if index < 0 || index >= len(m.sections) {
		return
	}
	m.sections[index].Collapsed = !m.sections[index].Collapsed
	m.notify(Change{Kind: ChangeCollapse, Index: index})
}

// Reorder moves the section at from to to. The selected section keeps
// its selection across the move.
func (m *Model) Reorder(from, to int) {
	n := len(m.sections)
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		return
	}
	moved := m.sections[from]
	m.sections = append(m.sections[:from], m.sections[from+1:]...)
	m.insert(to, moved)

	switch {
	case m.selected == from:
		m.selected = to
	case from < m.selected && to >= m.selected:
		m.selected--
	case from > m.selected && to <= m.selected:
		m.selected++
	}
	m.notify(Change{Kind: ChangeReorder, Index: to})
}

// Select changes the selected index. Out-of-range indexes are ignored.
func (m *Model) Select(index int) {
	if index < 0 || index >= len(m.sections) {
		return
	}
	m.selected = index
	m.notify(Change{Kind: ChangeSelect, Index: index})
}

// UpdateField sets a field of the selected section. String fields take
// the value as-is; boolean fields use loose truthiness.
func (m *Model) UpdateField(field Field, value any) {
	s := &m.sections[m.selected]
	switch field {
	case FieldContent:
		s.Content = asString(value)
	case FieldCSS:
		s.CSS = asString(value)
	case FieldJS:
		s.JS = asString(value)
	case FieldJSLocation:
		s.JSLocation = ParseJSLocation(value)
	case FieldFormat:
		s.Format = truthy(value)
	case FieldPHPExec:
		s.PHPExec = truthy(value)
	default:
		return
	}
	m.notify(Change{Kind: ChangeField, Index: m.selected, Field: field})
}

// Value returns the string value of a text field of the selected section.
func (m *Model) Value(field Field) string {
	s := m.sections[m.selected]
	switch field {
	case FieldContent:
		return s.Content
	case FieldCSS:
		return s.CSS
	case FieldJS:
		return s.JS
	}
	return ""
}

func (m *Model) insert(at int, s Section) {
	m.sections = append(m.sections, Section{})
	copy(m.sections[at+1:], m.sections[at:])
	m.sections[at] = s
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
