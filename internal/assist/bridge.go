// Package assist connects the editors to an AI code generator. The
// Bridge is the editor side; Service is the host side that talks to the
// configured LLM provider.
package assist

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/editor"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

// Request is a generation request.
type Request struct {
	Prompt       string `json:"prompt"`
	Tab          string `json:"tab"`
	ExistingCode string `json:"existingCode"`
	Selection    string `json:"selection"`
	Model        string `json:"model"`
	ContextHTML  string `json:"contextHtml"`
	ContextCSS   string `json:"contextCss"`
	PageURL      string `json:"pageUrl"`
}

// Response carries the generated code.
type Response struct {
	Code string `json:"code"`
}

// Generator produces code for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// HTTPGenerator calls the host generation endpoint.
type HTTPGenerator struct {
	Client *hostapi.Client
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if !g.Client.Configured() {
		return nil, hostapi.ErrConfig
	}
	var resp Response
	if err := g.Client.Post(ctx, "/api/ai/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ErrSelectionMoved is returned when the captured selection no longer
// matches the editor content at completion time.
var ErrSelectionMoved = errors.New("selection changed while generating")

// Message normalizes a generation error to the text shown to the user.
func Message(err error) string {
	var se *hostapi.StatusError
	switch {
	case errors.Is(err, hostapi.ErrConfig):
		return "AI endpoint is missing. Open this builder from the host editor."
	case errors.Is(err, hostapi.ErrMalformed):
		return "AI request failed: invalid response"
	case errors.Is(err, ErrSelectionMoved):
		return "AI request failed: the selected code changed while generating"
	case errors.As(err, &se):
		if se.Message == "" {
			return "AI error: Unknown error"
		}
		return "AI error: " + se.Message
	default:
		return "AI request failed: network error"
	}
}

// Hooks receive bridge results on the dispatch goroutine.
type Hooks struct {
	// Applied lists the tabs whose content was replaced.
	Applied func(tabs []editor.Tab)
	Failed  func(message string)
	Busy    func(bool)
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	Editors   *editor.Set
	Generator Generator
	PageURL   string
	Dispatch  func(func())
	Timeout   time.Duration
	Hooks     Hooks
}

// Bridge submits prompts for the selected section and splices the
// answers back through the editor bindings.
type Bridge struct {
	editors  *editor.Set
	gen      Generator
	pageURL  string
	dispatch func(func())
	timeout  time.Duration
	hooks    Hooks
	wg       sync.WaitGroup

	busy      bool
	tab       editor.Tab
	selection *editor.Selection
	selected  string
}

// NewBridge creates a Bridge from opts.
func NewBridge(opts BridgeOptions) *Bridge {
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Bridge{
		editors:  opts.Editors,
		gen:      opts.Generator,
		pageURL:  opts.PageURL,
		dispatch: dispatch,
		timeout:  timeout,
		hooks:    opts.Hooks,
	}
}

// Busy reports whether a generation is in flight.
func (b *Bridge) Busy() bool { return b.busy }

// Selection returns the captured selection text.
func (b *Bridge) Selection() string { return b.selected }

// Tab returns the tab the next generation targets.
func (b *Bridge) Tab() editor.Tab {
	if b.tab == "" {
		return b.editors.ActiveTab()
	}
	return b.tab
}

// Capture makes the active tab the generation target and records its
// selection. An empty selection clears any previous capture.
func (b *Bridge) Capture() string {
	b.tab = b.editors.ActiveTab()
	text, sel := b.editors.Binding(b.tab).SelectedText()
	if text == "" {
		b.selection, b.selected = nil, ""
		return ""
	}
	b.selection, b.selected = &sel, text
	return text
}

// Wait blocks until an in-flight generation has returned.
func (b *Bridge) Wait() { b.wg.Wait() }

// Submit sends prompt for the target tab of the selected section. It
// reports false when the prompt is empty or a generation is already in
// flight.
func (b *Bridge) Submit(ctx context.Context, prompt, model string) bool {
	prompt = strings.TrimSpace(prompt)
	if b.busy || prompt == "" || b.gen == nil {
		return false
	}
	tab := b.Tab()
	req := Request{
		Prompt:       prompt,
		Tab:          string(tab),
		ExistingCode: b.editors.Binding(tab).Value(),
		Selection:    b.selected,
		Model:        model,
		ContextHTML:  b.editors.Binding(editor.TabHTML).Value(),
		ContextCSS:   b.editors.Binding(editor.TabCSS).Value(),
		PageURL:      b.pageURL,
	}
	sel, selected := b.selection, b.selected
	b.setBusy(true)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		resp, err := b.gen.Generate(ctx, req)
		cancel()
		b.dispatch(func() { b.complete(tab, sel, selected, resp, err) })
	}()
	return true
}

func (b *Bridge) complete(tab editor.Tab, sel *editor.Selection, selected string, resp *Response, err error) {
	b.setBusy(false)
	if err == nil && resp == nil {
		err = hostapi.ErrMalformed
	}
	if err != nil {
		b.fail(err)
		return
	}
	code := resp.Code
	if code == "" {
		return
	}

	target := b.editors.Binding(tab)
	if sel != nil {
		value := target.Value()
		if sel.End > len(value) || value[sel.Start:sel.End] != selected {
			b.fail(ErrSelectionMoved)
			return
		}
	}

	var bundle Bundle
	if tab == editor.TabHTML {
		if bundle = ExtractBundle(code); bundle.HasBundle() && bundle.HTML != "" {
			code = bundle.HTML
		} else {
			bundle = Bundle{}
		}
	}

	changed := []editor.Tab{tab}
	target.Replace(sel, code)
	if bundle.HasCSS {
		b.appendTo(editor.TabCSS, bundle.CSS)
		changed = append(changed, editor.TabCSS)
	}
	if bundle.HasJS {
		b.appendTo(editor.TabJS, bundle.JS)
		changed = append(changed, editor.TabJS)
	}
	b.tab, b.selection, b.selected = "", nil, ""
	if b.hooks.Applied != nil {
		b.hooks.Applied(changed)
	}
}

func (b *Bridge) appendTo(tab editor.Tab, chunk string) {
	binding := b.editors.Binding(tab)
	binding.Replace(nil, joinChunk(binding.Value(), chunk))
}

func (b *Bridge) fail(err error) {
	log.Printf("[assist] generation failed: %v", err)
	if b.hooks.Failed != nil {
		b.hooks.Failed(Message(err))
	}
}

func (b *Bridge) setBusy(v bool) {
	b.busy = v
	if b.hooks.Busy != nil {
		b.hooks.Busy(v)
	}
}
