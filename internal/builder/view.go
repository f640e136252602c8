package builder

import (
	"github.com/ziadkadry99/pageblocks/internal/apply"
	"github.com/ziadkadry99/pageblocks/internal/console"
	"github.com/ziadkadry99/pageblocks/internal/editor"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/section"
	"github.com/ziadkadry99/pageblocks/internal/shell"
)

// ViewKind tags an outbound view update.
type ViewKind string

const (
	ViewList     ViewKind = "list"
	ViewPreview  ViewKind = "preview"
	ViewEditor   ViewKind = "editor"
	ViewFields   ViewKind = "fields"
	ViewAlert    ViewKind = "alert"
	ViewStatus   ViewKind = "status"
	ViewLayout   ViewKind = "layout"
	ViewConsole  ViewKind = "console"
	ViewAI       ViewKind = "ai"
	ViewRecovery ViewKind = "recovery"
	ViewHints    ViewKind = "hints"
	ViewClosed   ViewKind = "closed"
	ViewScroll   ViewKind = "scroll"
)

// View is one update for the client. Exactly one payload field is set,
// matching Kind.
type View struct {
	Kind     ViewKind          `json:"kind"`
	List     *ListView         `json:"list,omitempty"`
	Preview  *PreviewView      `json:"preview,omitempty"`
	Editor   *editor.ModelPush `json:"editor,omitempty"`
	Fields   *FieldsView       `json:"fields,omitempty"`
	Message  string            `json:"message,omitempty"`
	Status   apply.Status      `json:"status,omitempty"`
	Layout   *shell.Layout     `json:"layout,omitempty"`
	Console  *ConsoleView      `json:"console,omitempty"`
	AI       *AIView           `json:"ai,omitempty"`
	Recovery *RecoveryView     `json:"recovery,omitempty"`
	Hints    *HintsView        `json:"hints,omitempty"`
	Scroll   *preview.Scroll   `json:"scroll,omitempty"`
}

// ListView is the section index.
type ListView struct {
	Items    []section.Meta `json:"items"`
	Selected int            `json:"selected"`
	Visible  int            `json:"visible"`
	Active   section.Meta   `json:"active"`
}

// PreviewView carries an assembled preview document.
type PreviewView struct {
	RequestID uint64 `json:"requestId"`
	Document  string `json:"document"`
	Width     int    `json:"width"`
}

// FieldsView mirrors the non-text controls of the selected section.
type FieldsView struct {
	JSLocation section.JSLocation `json:"jsLocation"`
	Format     bool               `json:"format"`
	PHPExec    bool               `json:"phpExec"`
}

// ConsoleView is a console transcript update.
type ConsoleView struct {
	Line  *console.Line `json:"line,omitempty"`
	Busy  bool          `json:"busy"`
	Cwd   string        `json:"cwd"`
	Input *string       `json:"input,omitempty"`
	Clear bool          `json:"clear,omitempty"`
}

// AIView reports the prompt state.
type AIView struct {
	Busy      bool   `json:"busy"`
	Selection string `json:"selection,omitempty"`
}

// RecoveryView asks whether to restore a stored draft.
type RecoveryView struct {
	Timestamp int64 `json:"timestamp"`
	Sections  int   `json:"sections"`
}

// HintsView lists class completions for the cursor position.
type HintsView struct {
	Tab   editor.Tab  `json:"tab"`
	Hint  editor.Hint `json:"hint"`
	Items []string    `json:"items"`
}
