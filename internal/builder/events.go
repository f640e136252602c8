package builder

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ziadkadry99/pageblocks/internal/editor"
	"github.com/ziadkadry99/pageblocks/internal/message"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/section"
	"github.com/ziadkadry99/pageblocks/internal/shell"
)

// EventType names a client event.
type EventType string

const (
	EventEdit          EventType = "edit"
	EventField         EventType = "field"
	EventSelect        EventType = "select"
	EventAdd           EventType = "add"
	EventDuplicate     EventType = "duplicate"
	EventDelete        EventType = "delete"
	EventCollapse      EventType = "collapse"
	EventReorder       EventType = "reorder"
	EventFocus         EventType = "focus"
	EventCursor        EventType = "cursor"
	EventKey           EventType = "key"
	EventApply         EventType = "apply"
	EventCancel        EventType = "cancel"
	EventTemplate      EventType = "template"
	EventRecover       EventType = "recover"
	EventMessage       EventType = "message"
	EventAIOpen        EventType = "ai_open"
	EventAIClose       EventType = "ai_close"
	EventAISubmit      EventType = "ai_submit"
	EventConsole       EventType = "console"
	EventConsoleRecall EventType = "console_recall"
	EventConsoleClear  EventType = "console_clear"
	EventTogglePanel   EventType = "toggle_panel"
	EventSwapPane      EventType = "swap_pane"
	EventViewport      EventType = "viewport"
	EventResize        EventType = "resize"
	EventHint          EventType = "hint"
	EventAssets        EventType = "assets"
)

// Event is one client interaction.
type Event struct {
	Type EventType `json:"type"`

	Index int `json:"index,omitempty"`
	From  int `json:"from,omitempty"`
	To    int `json:"to,omitempty"`

	Tab       editor.Tab        `json:"tab,omitempty"`
	Value     json.RawMessage   `json:"value,omitempty"`
	Field     section.Field     `json:"field,omitempty"`
	Selection *editor.Selection `json:"selection,omitempty"`
	Key       *editor.KeyEvent  `json:"key,omitempty"`

	Restore bool           `json:"restore,omitempty"`
	Message *message.Event `json:"message,omitempty"`

	Prompt  string `json:"prompt,omitempty"`
	Model   string `json:"model,omitempty"`
	Command string `json:"command,omitempty"`
	Up      bool   `json:"up,omitempty"`

	Panel    shell.Panel    `json:"panel,omitempty"`
	Viewport shell.Viewport `json:"viewport,omitempty"`
	Height   int            `json:"height,omitempty"`
	Window   int            `json:"window,omitempty"`

	// HostPage is the parent document markup for asset capture.
	HostPage string `json:"hostPage,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

func (e Event) stringValue() string {
	var v string
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return ""
	}
	return v
}

func (e Event) anyValue() any {
	var v any
	if len(e.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return nil
	}
	return v
}

// Handle applies one client event. It must run on the session loop;
// use Dispatch from other goroutines.
func (s *Session) Handle(ctx context.Context, ev Event) {
	if s.recovery != nil && ev.Type != EventRecover && ev.Type != EventMessage {
		return
	}
	switch ev.Type {
	case EventEdit:
		s.editors.HandleUserEdit(editor.UserEdit{Tab: ev.Tab, Value: ev.stringValue()})
	case EventField:
		s.updateField(ev)
	case EventSelect:
		s.selectSection(ev.Index)
	case EventAdd:
		s.model.Add(ev.Index)
	case EventDuplicate:
		s.model.Duplicate(ev.Index)
	case EventDelete:
		s.model.Delete(ev.Index)
	case EventCollapse:
		s.model.ToggleCollapse(ev.Index)
	case EventReorder:
		s.model.Reorder(ev.From, ev.To)
	case EventFocus:
		s.editors.Focus(ev.Tab)
	case EventCursor:
		if ev.Selection != nil {
			s.editors.Binding(ev.Tab).Surface().Select(*ev.Selection)
			if editor.ParseTab(string(ev.Tab)) == editor.TabHTML {
				s.scheduleCursorScroll()
			}
		}
	case EventKey:
		if ev.Key != nil {
			s.runAction(ctx, s.keys.Dispatch(*ev.Key, s.layout.AIPromptOpen))
		}
	case EventApply:
		s.apply.Activate(ctx)
	case EventCancel:
		s.cancel()
	case EventTemplate:
		s.pageTemplate = ev.stringValue()
	case EventRecover:
		s.Recover(ev.Restore)
	case EventMessage:
		if ev.Message != nil {
			s.receive(*ev.Message)
		}
	case EventAIOpen:
		s.runAction(ctx, shell.ActionOpenAIPrompt)
	case EventAIClose:
		s.runAction(ctx, shell.ActionCloseAIPrompt)
	case EventAISubmit:
		s.ai.Submit(ctx, ev.Prompt, ev.Model)
	case EventConsole:
		if s.console != nil {
			s.console.Submit(ctx, ev.Command)
		}
	case EventConsoleRecall:
		s.recallConsole(ev.Up)
	case EventConsoleClear:
		if s.console != nil {
			s.console.Clear()
			s.emit(View{Kind: ViewConsole, Console: &ConsoleView{Clear: true, Cwd: s.console.Cwd()}})
		}
	case EventTogglePanel:
		s.layout.Toggle(ev.Panel)
		s.emitLayout()
	case EventSwapPane:
		s.layout.SwapPane()
		s.emitLayout()
	case EventViewport:
		s.layout.SetViewport(ev.Viewport)
		s.emitLayout()
		s.preview.Schedule(0)
	case EventResize:
		s.layout.Resize(ev.Height, ev.Window)
		s.emitLayout()
	case EventHint:
		s.hint()
	case EventAssets:
		s.captureAssets(ev.HostPage, ev.BaseURL)
	default:
		log.Printf("[builder] ignoring unknown event %q", ev.Type)
	}
}

// Dispatch queues ev on the session loop and waits for it to be handled.
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	return s.Do(func() { s.Handle(ctx, ev) })
}

func (s *Session) runAction(ctx context.Context, a shell.Action) {
	sel := s.model.SelectedIndex()
	switch a {
	case shell.ActionOpenAIPrompt:
		s.ai.Capture()
		s.layout.AIPromptOpen = true
		s.emitLayout()
		s.emit(View{Kind: ViewAI, AI: &AIView{Busy: s.ai.Busy(), Selection: s.ai.Selection()}})
	case shell.ActionCloseAIPrompt:
		s.layout.AIPromptOpen = false
		s.emitLayout()
	case shell.ActionApply:
		s.apply.Activate(ctx)
	case shell.ActionCycleViewport:
		s.layout.CycleViewport()
		s.emitLayout()
		s.preview.Schedule(0)
	case shell.ActionAddSection:
		s.model.Add(sel)
	case shell.ActionDuplicate:
		s.model.Duplicate(sel)
	case shell.ActionDelete:
		s.model.Delete(sel)
	case shell.ActionMoveUp:
		s.model.Reorder(sel, max(0, sel-1))
	case shell.ActionMoveDown:
		s.model.Reorder(sel, min(s.model.Len()-1, sel+1))
	case shell.ActionFocusHTML:
		s.editors.Focus(editor.TabHTML)
	case shell.ActionFocusCSS:
		s.editors.Focus(editor.TabCSS)
	case shell.ActionFocusJS:
		s.editors.Focus(editor.TabJS)
	}
}

// updateField routes text fields through their editor binding so the
// surface stays the single source of what the editor shows.
func (s *Session) updateField(ev Event) {
	tab, ok := editor.TabOf(ev.Field)
	if !ok {
		s.model.UpdateField(ev.Field, ev.anyValue())
		return
	}
	value := ev.stringValue()
	if s.editors.HandleUserEdit(editor.UserEdit{Tab: tab, Value: value}) {
		s.emit(View{Kind: ViewEditor, Editor: &editor.ModelPush{Tab: tab, Value: value}})
	}
}

func (s *Session) selectSection(index int) {
	if index < 0 || index >= s.model.Len() {
		return
	}
	s.model.Select(index)
	s.emitScroll(preview.ScrollToSection(index))
}

func (s *Session) scheduleCursorScroll() {
	s.scroll.Schedule(cursorScrollDelay, func() { s.post(s.scrollToCursor) })
}

func (s *Session) scrollToCursor() {
	surface := s.editors.Binding(editor.TabHTML).Surface()
	if target, ok := preview.ScrollToCursor(s.model.SelectedIndex(), surface.Value(), surface.Selection().End); ok {
		s.emitScroll(target)
	}
}

func (s *Session) emitScroll(target preview.Scroll) {
	s.emit(View{Kind: ViewScroll, Scroll: &target})
}

func (s *Session) emitLayout() {
	s.emit(View{Kind: ViewLayout, Layout: s.layout})
}

func (s *Session) cancel() {
	if !s.port.Embedded() {
		s.emit(View{Kind: ViewClosed})
		return
	}
	if err := s.port.Send(message.Cancel{}); err != nil {
		log.Printf("[builder] cancel message not sent: %v", err)
	}
}

func (s *Session) receive(ev message.Event) {
	msg, err := s.port.Accept(ev)
	if err != nil {
		log.Printf("[message] rejected inbound message: %v", err)
		return
	}
	switch m := msg.(type) {
	case message.Init:
		switch {
		case s.recovery != nil:
			s.hostInit = m.Sections
		case s.restored:
			s.restored = false
			log.Printf("[builder] kept restored draft of %s over the host init payload", s.cfg.DocumentID)
		default:
			s.model.Hydrate(m.Sections)
		}
	case message.Error:
		log.Printf("[message] host reported: %s", m.Message)
	}
}

func (s *Session) recallConsole(up bool) {
	if s.console == nil {
		return
	}
	var v string
	if up {
		v = s.console.Prev()
	} else {
		v = s.console.Next()
	}
	s.emit(View{Kind: ViewConsole, Console: &ConsoleView{Input: &v, Busy: s.console.Busy(), Cwd: s.console.Cwd()}})
}

func (s *Session) vocabulary() editor.Vocabulary {
	var all []string
	if s.cfg.Classes != nil {
		all = append(all, s.cfg.Classes()...)
	}
	all = append(all, editor.ClassesFromSections(s.model.Sections())...)
	return editor.NewVocabulary(all)
}

func (s *Session) hint() {
	tab := s.editors.ActiveTab()
	if tab == editor.TabJS {
		return
	}
	line, ch := cursorLine(s.editors.Active().Surface())
	var (
		h     editor.Hint
		ok    bool
		items []string
	)
	if tab == editor.TabCSS {
		if h, ok = editor.CSSHintContext(line, ch); ok {
			items = editor.SuggestPrefix(s.vocabulary(), h.Fragment)
		}
	} else if h, ok = editor.HintContext(line, ch); ok {
		items = editor.Suggest(s.vocabulary(), h.Fragment)
	}
	if !ok || len(items) == 0 {
		return
	}
	s.emit(View{Kind: ViewHints, Hints: &HintsView{Tab: tab, Hint: h, Items: items}})
}

func cursorLine(surface editor.Surface) (string, int) {
	if r, ok := surface.(*editor.RichSurface); ok {
		return r.Cursor()
	}
	value := surface.Value()
	pos := surface.Selection().End
	if pos > len(value) {
		pos = len(value)
	}
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if value[i] == '\n' {
			start = i + 1
			break
		}
	}
	end := len(value)
	for i := pos; i < len(value); i++ {
		if value[i] == '\n' {
			end = i
			break
		}
	}
	return value[start:end], pos - start
}
