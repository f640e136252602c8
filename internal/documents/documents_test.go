package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/render"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

func newTestStore(t *testing.T) (*Store, *db.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), database
}

func TestReplaceSectionsKeepsFirstSlot(t *testing.T) {
	blocks := []Block{
		{Name: "core/heading", HTML: "<h1>Top</h1>"},
		{Name: SectionBlock, Attrs: map[string]any{"content": "old-1"}},
		{Name: "core/paragraph", HTML: "<p>middle</p>"},
		{Name: SectionBlock, Attrs: map[string]any{"content": "old-2"}},
	}
	out := ReplaceSections(blocks, []section.Section{{Content: "new-1"}, {Content: "new-2"}})

	var names []string
	for _, b := range out {
		names = append(names, b.Name)
	}
	want := []string{"core/heading", SectionBlock, SectionBlock, "core/paragraph"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("blocks = %v, want %v", names, want)
	}
	if out[1].Attrs["content"] != "new-1" || out[2].Attrs["content"] != "new-2" {
		t.Errorf("sections not spliced: %+v", out[1:3])
	}
}

func TestReplaceSectionsAppendsWithoutSlot(t *testing.T) {
	out := ReplaceSections([]Block{{Name: "core/paragraph"}}, []section.Section{{Content: "a"}})
	if len(out) != 2 || !out[1].IsSection() {
		t.Fatalf("blocks = %+v", out)
	}
}

func TestNestedSectionsAreFound(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Name: "core/group", Inner: []Block{
			{Name: SectionBlock, Attrs: map[string]any{"content": "inner"}},
		}},
		{Name: SectionBlock, Attrs: map[string]any{"content": "outer"}},
	}}
	got := doc.Sections()
	if len(got) != 2 || got[0].Content != "inner" || got[1].Content != "outer" {
		t.Errorf("sections = %+v", got)
	}
}

func TestDecodeBlocksLegacyList(t *testing.T) {
	blocks, err := DecodeBlocks([]byte(`[{"content":"<p>a</p>","css":"","js":""},{"content":"b"}]`))
	if err != nil {
		t.Fatalf("DecodeBlocks: %v", err)
	}
	if len(blocks) != 2 || !blocks[0].IsSection() || blocks[1].Attrs["content"] != "b" {
		t.Errorf("blocks = %+v", blocks)
	}

	blocks, err = DecodeBlocks([]byte(`[{"name":"core/paragraph","html":"<p>x</p>"}]`))
	if err != nil {
		t.Fatalf("DecodeBlocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].IsSection() {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestTemplateHelpers(t *testing.T) {
	if TemplateSlug("") != "default-template" || TemplateSlug(TemplateDefault) != "default-template" {
		t.Error("default template slug")
	}
	if TemplateSlug(TemplateFullBuilder) != TemplateFullBuilder {
		t.Error("builder template slug")
	}
	if IsBuilderTemplate(TemplateDefault) || !IsBuilderTemplate(TemplateBuilder) {
		t.Error("IsBuilderTemplate")
	}
}

func TestStoreCRUD(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	doc, err := store.Create(ctx, "  About  ", "", []section.Section{{Content: "<p>hi</p>"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Title != "About" || doc.Template != TemplateDefault {
		t.Errorf("created = %+v", doc)
	}

	got, err := store.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if secs := got.Sections(); len(secs) != 1 || secs[0].Content != "<p>hi</p>" {
		t.Errorf("sections = %+v", secs)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}

	docs, err := store.List(ctx)
	if err != nil || len(docs) != 1 {
		t.Fatalf("List = %d docs, %v", len(docs), err)
	}

	if err := store.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, doc.ID); err != ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, doc.ID); err != ErrNotFound {
		t.Errorf("second Delete = %v", err)
	}
}

func TestApplySections(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	doc, err := store.Create(ctx, "Home", TemplateDefault, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.ApplySections(ctx, doc.ID, map[string]any{}, ""); err != ErrInvalidPayload {
		t.Errorf("non-list payload = %v", err)
	}

	raw := []any{
		map[string]any{"content": "<p>one</p>", "jsLocation": "inline", "js": "x()"},
		"junk",
		map[string]any{"content": "two", "format": "1"},
	}
	res, err := store.ApplySections(ctx, doc.ID, raw, "not-a-builder")
	if err != nil {
		t.Fatalf("ApplySections: %v", err)
	}
	if res.DocumentID != doc.ID || res.Message != "Page Blocks saved." {
		t.Errorf("result = %+v", res)
	}
	if len(res.Sections) != 2 || res.Sections[0].JSLocation != section.JSInline || !res.Sections[1].Format {
		t.Errorf("sections = %+v", res.Sections)
	}
	if res.Template != TemplateBuilder {
		t.Errorf("template = %q, want %q", res.Template, TemplateBuilder)
	}

	other, _ := store.Create(ctx, "Landing", "", nil)
	res, err = store.ApplySections(ctx, other.ID, []any{}, TemplateFullBuilder)
	if err != nil {
		t.Fatalf("ApplySections: %v", err)
	}
	if res.Template != TemplateFullBuilder {
		t.Errorf("template = %q, want %q", res.Template, TemplateFullBuilder)
	}

	if _, err := store.ApplySections(ctx, "missing", []any{}, ""); err != ErrNotFound {
		t.Errorf("missing document = %v", err)
	}
}

type fixture struct {
	router *chi.Mux
	store  *Store
	audit  *audit.Store
	signer *auth.Signer
	doc    *Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, database := newTestStore(t)
	signer, err := auth.NewSigner("secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	doc, err := store.Create(context.Background(), "Home", "", []section.Section{{Content: "<p>old</p>"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f := &fixture{router: chi.NewRouter(), store: store, audit: audit.NewStore(database), signer: signer, doc: doc}
	RegisterRoutes(f.router, Routes{
		Store:      store,
		Signer:     signer,
		Renderer:   render.New(nil),
		Audit:      f.audit,
		BuilderURL: func(id, token string) string { return "/builder/" + id + "?pb_nonce=" + token },
		Injection:  preview.Injection{HeadHTML: `<meta name="pb" content="1">`},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, hostapi.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set(hostapi.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var env hostapi.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func errorMessage(t *testing.T, env hostapi.Envelope) string {
	t.Helper()
	var data hostapi.ErrorData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	return data.Message
}

func TestApplyRequiresBuilderToken(t *testing.T) {
	f := newFixture(t)
	path := "/api/documents/" + f.doc.ID + "/apply"
	body := map[string]any{"sections": []any{}}

	rec, env := f.do(t, http.MethodPost, path, "", body)
	if rec.Code != http.StatusForbidden || env.Success {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := errorMessage(t, env); msg != "You do not have permission to save Page Blocks." {
		t.Errorf("message = %q", msg)
	}

	previewToken := f.signer.Issue(auth.ActionPreview, f.doc.ID, auth.DefaultTTL)
	if rec, _ := f.do(t, http.MethodPost, path, previewToken, body); rec.Code != http.StatusForbidden {
		t.Errorf("preview token accepted for apply: %d", rec.Code)
	}
	other := f.signer.Issue(auth.ActionBuilder, "other", auth.DefaultTTL)
	if rec, _ := f.do(t, http.MethodPost, path, other, body); rec.Code != http.StatusForbidden {
		t.Errorf("token for another document accepted: %d", rec.Code)
	}
}

func TestApplyEndpoint(t *testing.T) {
	f := newFixture(t)
	token := f.signer.Issue(auth.ActionBuilder, f.doc.ID, auth.DefaultTTL)
	path := "/api/documents/" + f.doc.ID + "/apply"

	rec, env := f.do(t, http.MethodPost, path, token, map[string]any{"sections": "nope"})
	if rec.Code != http.StatusBadRequest || errorMessage(t, env) != "Invalid builder payload." {
		t.Fatalf("invalid payload: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = f.do(t, http.MethodPost, path, token, map[string]any{
		"sections":     []any{map[string]any{"content": "<p>new</p>", "css": "p{}"}},
		"pageTemplate": TemplateFullBuilder,
	})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("apply: %d %s", rec.Code, rec.Body.String())
	}
	var res ApplyResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.DocumentID != f.doc.ID || len(res.Sections) != 1 || res.Template != TemplateFullBuilder {
		t.Errorf("result = %+v", res)
	}

	stored, _ := f.store.Get(context.Background(), f.doc.ID)
	if secs := stored.Sections(); len(secs) != 1 || secs[0].Content != "<p>new</p>" {
		t.Errorf("stored sections = %+v", secs)
	}

	entries, err := f.audit.Query(context.Background(), audit.QueryFilter{ScopeID: f.doc.ID})
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != audit.ActionSectionsApplied {
		t.Errorf("audit entries = %+v", entries)
	}
	if !strings.Contains(entries[0].PreviousValue, "<p>old</p>") {
		t.Errorf("previous value = %q", entries[0].PreviousValue)
	}
	if !strings.Contains(entries[0].NewValue, `"content":"<p>new</p>"`) {
		t.Errorf("new value = %q", entries[0].NewValue)
	}
}

func TestApplyMissingDocument(t *testing.T) {
	f := newFixture(t)
	token := f.signer.Issue(auth.ActionBuilder, "gone", auth.DefaultTTL)
	rec, env := f.do(t, http.MethodPost, "/api/documents/gone/apply", token, map[string]any{"sections": []any{}})
	if rec.Code != http.StatusNotFound || errorMessage(t, env) != "Document no longer exists." {
		t.Errorf("missing document: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPreviewEndpoint(t *testing.T) {
	f := newFixture(t)
	path := "/api/documents/" + f.doc.ID + "/preview"
	body := map[string]any{"sections": []any{
		map[string]any{"content": "<h2>A</h2>", "css": "h2 { color: red; }", "js": "a();", "jsLocation": "inline"},
		map[string]any{"js": "b();"},
	}}

	if rec, _ := f.do(t, http.MethodPost, path, "", body); rec.Code != http.StatusForbidden {
		t.Fatalf("preview without token: %d", rec.Code)
	}

	token := f.signer.Issue(auth.ActionPreview, f.doc.ID, auth.DefaultTTL)
	rec, env := f.do(t, http.MethodPost, path, token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body.String())
	}
	var got preview.Rendered
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode rendered: %v", err)
	}
	if got.HTML != "<h2>A</h2>" || got.CSS != "h2{color:red}" || got.JSInline != "a();" || got.JSFooter != "b();" {
		t.Errorf("rendered = %+v", got)
	}

	rec, env = f.do(t, http.MethodPost, path, token, map[string]any{"sections": 3})
	if rec.Code != http.StatusBadRequest || errorMessage(t, env) != "Invalid preview payload." {
		t.Errorf("invalid preview payload: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateIssuesBuilderLaunch(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/api/documents/", "", map[string]any{
		"title":    "Pricing",
		"sections": []any{map[string]any{"content": "<p>plans</p>"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var launch Launch
	if err := json.Unmarshal(env.Data, &launch); err != nil {
		t.Fatalf("decode launch: %v", err)
	}
	if launch.Title != "Pricing" || len(launch.Sections) != 1 || launch.TemplateSlug != "default-template" {
		t.Errorf("launch = %+v", launch)
	}
	if err := f.signer.Verify(launch.Token, auth.ActionBuilder, launch.ID); err != nil {
		t.Errorf("issued token invalid: %v", err)
	}
	if !strings.HasPrefix(launch.BuilderURL, "/builder/"+launch.ID) {
		t.Errorf("builder url = %q", launch.BuilderURL)
	}

	rec, env = f.do(t, http.MethodGet, "/api/documents/", "", nil)
	var views []View
	if err := json.Unmarshal(env.Data, &views); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("list: %d %v", rec.Code, err)
	}
	if len(views) != 2 {
		t.Errorf("listed %d documents", len(views))
	}
}

func TestPublishedPage(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodGet, "/p/"+f.doc.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("published: %d", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{"<title>Home</title>", "<p>old</p>", `<meta name="pb" content="1">`} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q:\n%s", want, out)
		}
	}
	if rec, _ := f.do(t, http.MethodGet, "/p/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing page: %d", rec.Code)
	}
}
