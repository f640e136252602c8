package editor

import "strings"

// KeyEvent is a key press reported by the client. It formats as a
// "ctrl+alt+shift+key" string so it can be matched against key bindings.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
}

// Mod reports whether the platform command modifier is held.
func (k KeyEvent) Mod() bool { return k.Ctrl || k.Meta }

// String renders the event the way key bindings spell it. Both Ctrl and
// Meta map to "ctrl" so one binding covers both platforms.
func (k KeyEvent) String() string {
	var b strings.Builder
	if k.Mod() {
		b.WriteString("ctrl+")
	}
	if k.Alt {
		b.WriteString("alt+")
	}
	if k.Shift {
		b.WriteString("shift+")
	}
	b.WriteString(strings.ToLower(k.Key))
	return b.String()
}

// ShouldIsolate reports whether a key press inside an editor must not
// reach document-level shortcut handlers: tab, modifier+space and
// modifier+z/y.
func ShouldIsolate(k KeyEvent) bool {
	key := strings.ToLower(k.Key)
	if key == "tab" {
		return true
	}
	if !k.Mod() {
		return false
	}
	return key == " " || key == "space" || key == "z" || key == "y"
}
