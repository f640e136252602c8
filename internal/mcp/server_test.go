package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/documents"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

func newTestServer(t *testing.T) (*Server, *documents.Document, *audit.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := documents.NewStore(database)
	doc, err := store.Create(context.Background(), "Landing", "", []section.Section{
		{Content: `<section id="hero" class="hero wide"><h2>Hello</h2></section>`, CSS: ".hero { color: red; }"},
		{Content: "<p>Second</p>", JS: "init();", JSLocation: section.JSInline},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec := audit.NewStore(database)
	return NewServer(store, nil, rec), doc, rec
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return tc.Text
}

func TestToolDefinitions(t *testing.T) {
	// Verify tool names and required properties.
	tests := []struct {
		tool     mcp.Tool
		wantName string
		required []string
	}{
		{listDocumentsTool, "list_documents", nil},
		{listSectionsTool, "list_sections", []string{"document_id"}},
		{getSectionTool, "get_section", []string{"document_id", "index"}},
		{updateSectionTool, "update_section", []string{"document_id", "index"}},
		{renderPreviewTool, "render_preview", []string{"document_id"}},
		{applySectionsTool, "apply_sections", []string{"document_id", "sections"}},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if strings.Join(tt.tool.InputSchema.Required, ",") != strings.Join(tt.required, ",") {
				t.Errorf("required = %v, want %v", tt.tool.InputSchema.Required, tt.required)
			}
		})
	}
}

func TestListSections(t *testing.T) {
	srv, doc, _ := newTestServer(t)

	result := call(t, srv.handleListSections, map[string]any{"document_id": doc.ID})
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	out := text(t, result)
	for _, want := range []string{"2 sections", "#hero", ".hero .wide"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if result := call(t, srv.handleListSections, map[string]any{}); !result.IsError {
		t.Error("expected error for missing document_id")
	}
	if result := call(t, srv.handleListSections, map[string]any{"document_id": "nope"}); !result.IsError {
		t.Error("expected error for unknown document")
	}
}

func TestGetSection(t *testing.T) {
	srv, doc, _ := newTestServer(t)

	result := call(t, srv.handleGetSection, map[string]any{"document_id": doc.ID, "index": float64(1)})
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	var got section.Export
	if err := json.Unmarshal([]byte(text(t, result)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Content != "<p>Second</p>" || got.JSLocation != section.JSInline {
		t.Errorf("section = %+v", got)
	}

	for _, args := range []map[string]any{
		{"document_id": doc.ID},
		{"document_id": doc.ID, "index": float64(5)},
		{"document_id": doc.ID, "index": float64(-1)},
	} {
		if result := call(t, srv.handleGetSection, args); !result.IsError {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestUpdateSection(t *testing.T) {
	srv, doc, rec := newTestServer(t)
	ctx := context.Background()

	if result := call(t, srv.handleUpdateSection, map[string]any{"document_id": doc.ID, "index": float64(0)}); !result.IsError {
		t.Error("expected error when nothing changes")
	}

	result := call(t, srv.handleUpdateSection, map[string]any{
		"document_id": doc.ID,
		"index":       float64(0),
		"css":         ".hero { color: blue; }",
		"format":      true,
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}

	stored, err := srv.docs.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	secs := stored.Sections()
	if len(secs) != 2 {
		t.Fatalf("sections = %d", len(secs))
	}
	if secs[0].CSS != ".hero { color: blue; }" || !secs[0].Format {
		t.Errorf("section 0 = %+v", secs[0])
	}
	if !strings.Contains(secs[0].Content, "Hello") {
		t.Errorf("content lost: %q", secs[0].Content)
	}

	entries, err := rec.Query(ctx, audit.QueryFilter{Action: audit.ActionSectionUpdated})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorType != audit.ActorAgent {
		t.Fatalf("audit entries = %+v", entries)
	}
	if !strings.Contains(entries[0].PreviousValue, "<h2>Hello</h2>") {
		t.Errorf("previous value = %q", entries[0].PreviousValue)
	}
}

func TestRenderPreview(t *testing.T) {
	srv, doc, _ := newTestServer(t)

	result := call(t, srv.handleRenderPreview, map[string]any{"document_id": doc.ID})
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	var got preview.Rendered
	if err := json.Unmarshal([]byte(text(t, result)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CSS != ".hero{color:red}" || got.JSInline != "init();" {
		t.Errorf("rendered = %+v", got)
	}
}

func TestApplySections(t *testing.T) {
	srv, doc, _ := newTestServer(t)

	if result := call(t, srv.handleApplySections, map[string]any{"document_id": doc.ID, "sections": "{oops"}); !result.IsError {
		t.Error("expected error for malformed JSON")
	}
	if result := call(t, srv.handleApplySections, map[string]any{"document_id": doc.ID, "sections": `{"content":"x"}`}); !result.IsError {
		t.Error("expected error for non-array sections")
	}

	result := call(t, srv.handleApplySections, map[string]any{
		"document_id":   doc.ID,
		"sections":      `[{"content":"<p>only</p>"}]`,
		"page_template": documents.TemplateFullBuilder,
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	if out := text(t, result); !strings.Contains(out, "1 sections") || !strings.Contains(out, documents.TemplateFullBuilder) {
		t.Errorf("output = %q", out)
	}
}

func TestListDocuments(t *testing.T) {
	srv, doc, _ := newTestServer(t)
	result := call(t, srv.handleListDocuments, map[string]any{})
	if out := text(t, result); !strings.Contains(out, doc.ID) || !strings.Contains(out, "sections=2") {
		t.Errorf("output = %q", out)
	}
}
