package shell

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/ziadkadry99/pageblocks/internal/editor"
)

// Action is a builder command triggered from the keyboard.
type Action string

const (
	ActionNone          Action = ""
	ActionOpenAIPrompt  Action = "ai_prompt"
	ActionCloseAIPrompt Action = "ai_prompt_close"
	ActionApply         Action = "apply"
	ActionCycleViewport Action = "cycle_viewport"
	ActionAddSection    Action = "add_section"
	ActionDuplicate     Action = "duplicate_section"
	ActionDelete        Action = "delete_section"
	ActionMoveUp        Action = "move_up"
	ActionMoveDown      Action = "move_down"
	ActionFocusHTML     Action = "focus_html"
	ActionFocusCSS      Action = "focus_css"
	ActionFocusJS       Action = "focus_js"
)

// KeyMap binds keys to builder actions. "ctrl" also matches the meta
// key; see editor.KeyEvent.String.
type KeyMap struct {
	AIPrompt  key.Binding
	Escape    key.Binding
	Apply     key.Binding
	Viewport  key.Binding
	Add       key.Binding
	Duplicate key.Binding
	Delete    key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	FocusHTML key.Binding
	FocusCSS  key.Binding
	FocusJS   key.Binding
}

// DefaultKeyMap returns the builder shortcuts.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		AIPrompt: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "ask AI"),
		),
		Escape: key.NewBinding(
			key.WithKeys("escape"),
			key.WithHelp("esc", "close AI prompt"),
		),
		Apply: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "apply"),
		),
		Viewport: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "cycle viewport"),
		),
		Add: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "add section"),
		),
		Duplicate: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "duplicate section"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+backspace"),
			key.WithHelp("ctrl+backspace", "delete section"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("alt+arrowup"),
			key.WithHelp("alt+↑", "move section up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("alt+arrowdown"),
			key.WithHelp("alt+↓", "move section down"),
		),
		FocusHTML: key.NewBinding(
			key.WithKeys("alt+1"),
			key.WithHelp("alt+1", "HTML editor"),
		),
		FocusCSS: key.NewBinding(
			key.WithKeys("alt+2"),
			key.WithHelp("alt+2", "CSS editor"),
		),
		FocusJS: key.NewBinding(
			key.WithKeys("alt+3"),
			key.WithHelp("alt+3", "JS editor"),
		),
	}
}

// Bindings lists the bindings in help order.
func (k KeyMap) Bindings() []key.Binding {
	return []key.Binding{k.AIPrompt, k.Apply, k.Viewport, k.Add, k.Duplicate, k.Delete, k.MoveUp, k.MoveDown, k.FocusHTML, k.FocusCSS, k.FocusJS, k.Escape}
}

// Dispatch resolves a key press. Escape only acts while the AI prompt
// is open.
func (k KeyMap) Dispatch(ev editor.KeyEvent, aiPromptOpen bool) Action {
	switch {
	case key.Matches(ev, k.Escape):
		if aiPromptOpen {
			return ActionCloseAIPrompt
		}
		return ActionNone
	case key.Matches(ev, k.AIPrompt):
		return ActionOpenAIPrompt
	case key.Matches(ev, k.Apply):
		return ActionApply
	case key.Matches(ev, k.Viewport):
		return ActionCycleViewport
	case key.Matches(ev, k.Add):
		return ActionAddSection
	case key.Matches(ev, k.Duplicate):
		return ActionDuplicate
	case key.Matches(ev, k.Delete):
		return ActionDelete
	case key.Matches(ev, k.MoveUp):
		return ActionMoveUp
	case key.Matches(ev, k.MoveDown):
		return ActionMoveDown
	case key.Matches(ev, k.FocusHTML):
		return ActionFocusHTML
	case key.Matches(ev, k.FocusCSS):
		return ActionFocusCSS
	case key.Matches(ev, k.FocusJS):
		return ActionFocusJS
	}
	return ActionNone
}

// Help describes one shortcut for display.
type Help struct {
	Key  string `json:"key"`
	Desc string `json:"desc"`
}

// Help returns the enabled shortcuts for display.
func (k KeyMap) Help() []Help {
	var out []Help
	for _, b := range k.Bindings() {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		out = append(out, Help{Key: h.Key, Desc: h.Desc})
	}
	return out
}
