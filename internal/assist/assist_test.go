package assist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/editor"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/llm"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

type fakeGenerator struct {
	code string
	err  error
	got  Request
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (*Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Code: f.code}, nil
}

type result struct {
	applied [][]editor.Tab
	failed  []string
}

func newBridge(t *testing.T, content, css string, gen Generator) (*Bridge, *section.Model, *editor.Set, *result) {
	t.Helper()
	model := section.NewModel()
	model.Hydrate([]any{map[string]any{"content": content, "css": css}})
	set := editor.NewSet(model, false)
	set.Sync(model)
	res := &result{}
	b := NewBridge(BridgeOptions{
		Editors:   set,
		Generator: gen,
		PageURL:   "https://site.test/about",
		Hooks: Hooks{
			Applied: func(tabs []editor.Tab) { res.applied = append(res.applied, tabs) },
			Failed:  func(m string) { res.failed = append(res.failed, m) },
		},
	})
	return b, model, set, res
}

func TestExtractBundle(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantHTML string
		wantCSS  string
		wantJS   string
		bundle   bool
	}{
		{
			name:     "style and script",
			in:       "<div>Hi</div>\n\n\n\n<style id=\"ai-generated\"> .a{} </style><script id='ai-generated'>go()</script>",
			wantHTML: "<div>Hi</div>",
			wantCSS:  ".a{}",
			wantJS:   "go()",
			bundle:   true,
		},
		{
			name:     "unmarked blocks stay",
			in:       "<style>.b{}</style><p>x</p>",
			wantHTML: "<style>.b{}</style><p>x</p>",
		},
		{
			name:     "bare attribute and two chunks",
			in:       "<style id=ai-generated>.a{}</style><p>x</p><STYLE ID=\"AI-GENERATED\">.b{}</STYLE>",
			wantHTML: "<p>x</p>",
			wantCSS:  ".a{}\n\n.b{}",
			bundle:   true,
		},
		{
			name:     "similar id is not the sentinel",
			in:       "<script id=\"ai-generated-2\">x()</script>",
			wantHTML: "<script id=\"ai-generated-2\">x()</script>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ExtractBundle(tt.in)
			if b.HTML != tt.wantHTML || b.CSS != tt.wantCSS || b.JS != tt.wantJS || b.HasBundle() != tt.bundle {
				t.Errorf("got %+v", b)
			}
		})
	}
}

func TestSubmitRoutesBundleIntoAllTabs(t *testing.T) {
	gen := &fakeGenerator{code: "<div class=\"x\">Hi</div>\n<style id=\"ai-generated\">.x{color:red}</style>\n<script id=\"ai-generated\">go()</script>"}
	b, model, set, res := newBridge(t, "<p>old</p>", ".y{}", gen)

	if !b.Submit(context.Background(), "  make a hero  ", "gpt-4o-mini") {
		t.Fatal("submit rejected")
	}
	b.Wait()

	if gen.got.Prompt != "make a hero" || gen.got.ExistingCode != "<p>old</p>" || gen.got.ContextCSS != ".y{}" || gen.got.PageURL != "https://site.test/about" {
		t.Errorf("request = %+v", gen.got)
	}
	s := model.Selected()
	if s.Content != `<div class="x">Hi</div>` {
		t.Errorf("content = %q", s.Content)
	}
	if s.CSS != ".y{}\n\n.x{color:red}" {
		t.Errorf("css = %q", s.CSS)
	}
	if s.JS != "go()" {
		t.Errorf("js = %q", s.JS)
	}
	if set.Binding(editor.TabCSS).Value() != s.CSS {
		t.Error("css surface not updated")
	}
	if len(res.applied) != 1 || len(res.applied[0]) != 3 {
		t.Errorf("applied = %v", res.applied)
	}
}

func TestSubmitReplacesOnlyTheSelection(t *testing.T) {
	gen := &fakeGenerator{code: "<p>2</p>"}
	b, model, set, _ := newBridge(t, "<p>one</p><p>two</p>", "", gen)

	start := strings.Index(model.Selected().Content, "<p>two</p>")
	set.Binding(editor.TabHTML).Surface().Select(editor.Selection{Start: start, End: start + len("<p>two</p>")})
	if got := b.Capture(); got != "<p>two</p>" {
		t.Fatalf("Capture = %q", got)
	}

	b.Submit(context.Background(), "number it", "")
	b.Wait()

	if gen.got.Selection != "<p>two</p>" {
		t.Errorf("selection sent = %q", gen.got.Selection)
	}
	if got := model.Selected().Content; got != "<p>one</p><p>2</p>" {
		t.Errorf("content = %q", got)
	}
}

func TestSubmitTargetsActiveTab(t *testing.T) {
	gen := &fakeGenerator{code: `.y{margin:0}<style id="ai-generated">.z{}</style>`}
	b, model, set, res := newBridge(t, "<p>keep</p>", ".x{}\n.y{}", gen)

	set.Focus(editor.TabCSS)
	css := set.Binding(editor.TabCSS)
	start := strings.Index(css.Value(), ".y{}")
	css.Surface().Select(editor.Selection{Start: start, End: start + len(".y{}")})
	if got := b.Capture(); got != ".y{}" {
		t.Fatalf("Capture = %q", got)
	}
	if b.Tab() != editor.TabCSS {
		t.Fatalf("tab = %s", b.Tab())
	}

	b.Submit(context.Background(), "reset margins", "")
	b.Wait()

	if gen.got.Tab != "css" || gen.got.ExistingCode != ".x{}\n.y{}" || gen.got.ContextHTML != "<p>keep</p>" || gen.got.Selection != ".y{}" {
		t.Errorf("request = %+v", gen.got)
	}
	s := model.Selected()
	if s.CSS != `.x{}
.y{margin:0}<style id="ai-generated">.z{}</style>` {
		t.Errorf("css = %q", s.CSS)
	}
	if s.Content != "<p>keep</p>" {
		t.Errorf("html changed: %q", s.Content)
	}
	if len(res.applied) != 1 || len(res.applied[0]) != 1 || res.applied[0][0] != editor.TabCSS {
		t.Errorf("applied = %v", res.applied)
	}
	if b.Tab() != editor.TabCSS {
		t.Errorf("tab after completion = %s", b.Tab())
	}
}

func TestBundleOnlyAnswerIsInsertedVerbatim(t *testing.T) {
	code := `<style id="ai-generated">.x{}</style>`
	b, model, _, _ := newBridge(t, "", "", &fakeGenerator{code: code})
	b.Submit(context.Background(), "style", "")
	b.Wait()
	if s := model.Selected(); s.Content != code || s.CSS != "" {
		t.Errorf("section = %+v", s)
	}
}

func TestSubmitFailureLeavesModelUntouched(t *testing.T) {
	b, model, _, res := newBridge(t, "<p>keep</p>", "", &fakeGenerator{err: &hostapi.StatusError{Status: 400, Message: "quota exceeded"}})
	b.Submit(context.Background(), "go", "")
	b.Wait()
	if model.Selected().Content != "<p>keep</p>" {
		t.Error("model changed after a failed generation")
	}
	if len(res.failed) != 1 || res.failed[0] != "AI error: quota exceeded" {
		t.Errorf("failed = %v", res.failed)
	}
	if b.Busy() {
		t.Error("bridge still busy")
	}
}

func TestSubmitRejectsEmptyPrompt(t *testing.T) {
	b, _, _, _ := newBridge(t, "", "", &fakeGenerator{})
	if b.Submit(context.Background(), "   ", "") {
		t.Error("empty prompt accepted")
	}
}

func TestHTTPGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(hostapi.TokenHeader) != "tok" {
			hostapi.WriteError(w, http.StatusForbidden, "bad token")
			return
		}
		if r.URL.Path == "/api/ai/generate" {
			hostapi.WriteJSON(w, http.StatusOK, Response{Code: "<b>ok</b>"})
			return
		}
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	gen := &HTTPGenerator{Client: hostapi.NewClient(srv.URL, "tok")}
	resp, err := gen.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil || resp.Code != "<b>ok</b>" {
		t.Fatalf("Generate = %+v, %v", resp, err)
	}

	bad := &HTTPGenerator{Client: hostapi.NewClient(srv.URL+"/other", "tok")}
	_, err = bad.Generate(context.Background(), Request{Prompt: "x"})
	if got := Message(err); got != "AI request failed: invalid response" {
		t.Errorf("Message = %q (err %v)", got, err)
	}

	_, err = (&HTTPGenerator{}).Generate(context.Background(), Request{})
	if !errors.Is(err, hostapi.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

type mockProvider struct {
	answer string
	got    llm.CompletionRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.got = req
	return &llm.CompletionResponse{Content: m.answer, InputTokens: 100, OutputTokens: 50}, nil
}

func TestServiceGenerate(t *testing.T) {
	mock := &mockProvider{answer: "```html\n<section>Hero</section>\n```"}
	var gotProvider string
	svc := NewService(llm.Keys{OpenAI: "k"}, "gpt-4o-mini", 0).WithFactory(func(p, model string) (llm.Provider, error) {
		gotProvider = p
		return mock, nil
	})

	res, err := svc.Generate(context.Background(), Request{Prompt: "hero", Tab: "html", ContextCSS: ".a{}"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Code != "<section>Hero</section>" {
		t.Errorf("code = %q", res.Code)
	}
	if gotProvider != "openai" || res.Model != "gpt-4o-mini" {
		t.Errorf("provider %q model %q", gotProvider, res.Model)
	}
	if len(mock.got.Messages) != 2 || !strings.Contains(mock.got.Messages[0].Content, `id="ai-generated"`) {
		t.Errorf("system prompt = %+v", mock.got.Messages)
	}
	if !strings.Contains(mock.got.Messages[1].Content, "Section CSS:\n.a{}") {
		t.Errorf("user prompt = %q", mock.got.Messages[1].Content)
	}

	if _, err := svc.Generate(context.Background(), Request{Prompt: "x", Model: "claude-opus-4-6"}); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
	if _, err := svc.Generate(context.Background(), Request{Prompt: "x", Model: "nope"}); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if _, err := svc.Generate(context.Background(), Request{}); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestModelsFilteredByCredentials(t *testing.T) {
	svc := NewService(llm.Keys{Anthropic: "k"}, "", 0)
	for _, m := range svc.Models() {
		if m.Provider != "anthropic" {
			t.Errorf("unexpected model %+v", m)
		}
	}
	if len(svc.Models()) != 3 {
		t.Errorf("expected 3 anthropic models, got %d", len(svc.Models()))
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```css\n.a{}\n```": ".a{}",
		"```\nx\n```":       "x",
		"plain":             "plain",
		"a ```b``` c":       "a ```b``` c",
	}
	for in, want := range tests {
		if got := StripFences(in); got != want {
			t.Errorf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceLimiterIsSharedAcrossRequests(t *testing.T) {
	mock := &mockProvider{answer: "<p>x</p>"}
	svc := NewService(llm.Keys{OpenAI: "k"}, "gpt-4o-mini", 1).WithFactory(func(string, string) (llm.Provider, error) {
		return mock, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := svc.Generate(ctx, Request{Prompt: "one"}); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := svc.Generate(ctx, Request{Prompt: "two"}); err == nil {
		t.Error("second request within the minute should be limited")
	}
}
