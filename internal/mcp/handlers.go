package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/documents"
	"github.com/ziadkadry99/pageblocks/internal/render"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

// agentID identifies MCP clients in the audit trail.
const agentID = "mcp"

// handleListDocuments lists every stored page.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing documents failed: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents found. Create one with `pageblocks serve` and POST /api/documents."), nil
	}

	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "- %s  %q  template=%s  sections=%d\n", d.ID, d.Title, d.Template, len(d.Sections()))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// loadDocument resolves the document_id argument.
func (s *Server) loadDocument(ctx context.Context, request mcp.CallToolRequest) (*documents.Document, *mcp.CallToolResult) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return nil, mcp.NewToolResultError("missing required parameter: document_id")
	}
	doc, err := s.docs.Get(ctx, id)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, mcp.NewToolResultError(fmt.Sprintf("No document with id %q.", id))
	}
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("loading document failed: %v", err))
	}
	return doc, nil
}

// sectionIndex resolves the index argument against sections.
func sectionIndex(request mcp.CallToolRequest, n int) (int, *mcp.CallToolResult) {
	if _, ok := request.GetArguments()["index"]; !ok {
		return 0, mcp.NewToolResultError("missing required parameter: index")
	}
	index := request.GetInt("index", -1)
	if index < 0 || index >= n {
		return 0, mcp.NewToolResultError(fmt.Sprintf("index %d out of range: the page has %d sections", index, n))
	}
	return index, nil
}

// handleListSections lists the sections of a page by display name.
func (s *Server) handleListSections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := s.loadDocument(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	sections := doc.Sections()
	if len(sections) == 0 {
		return mcp.NewToolResultText("The page has no sections."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s), %d sections:\n", doc.Title, doc.Template, len(sections))
	for i, m := range section.DescribeAll(sections) {
		fmt.Fprintf(&b, "%d. %s  #%s", i, m.Name, m.ID)
		if len(m.Classes) > 0 {
			fmt.Fprintf(&b, "  .%s", strings.Join(m.Classes, " ."))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleGetSection returns one section in its export shape.
func (s *Server) handleGetSection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := s.loadDocument(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	sections := doc.Sections()
	index, errResult := sectionIndex(request, len(sections))
	if errResult != nil {
		return errResult, nil
	}

	data, err := json.MarshalIndent(sections[index].Export(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding section failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleUpdateSection changes the given fields of one section and saves.
func (s *Server) handleUpdateSection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := s.loadDocument(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	exports := section.ExportAll(doc.Sections())
	index, errResult := sectionIndex(request, len(exports))
	if errResult != nil {
		return errResult, nil
	}

	before := exports[index]
	e := &exports[index]
	args := request.GetArguments()
	var changed []string
	if _, ok := args["content"]; ok {
		e.Content = request.GetString("content", "")
		changed = append(changed, "content")
	}
	if _, ok := args["css"]; ok {
		e.CSS = request.GetString("css", "")
		changed = append(changed, "css")
	}
	if _, ok := args["js"]; ok {
		e.JS = request.GetString("js", "")
		changed = append(changed, "js")
	}
	if v, ok := args["js_location"]; ok {
		e.JSLocation = section.ParseJSLocation(v)
		changed = append(changed, "jsLocation")
	}
	if _, ok := args["format"]; ok {
		e.Format = request.GetBool("format", false)
		changed = append(changed, "format")
	}
	if _, ok := args["php_exec"]; ok {
		e.PHPExec = request.GetBool("php_exec", false)
		changed = append(changed, "phpExec")
	}
	if len(changed) == 0 {
		return mcp.NewToolResultError("nothing to update: pass at least one of content, css, js, js_location, format, php_exec"), nil
	}

	res, err := s.docs.ApplySections(ctx, doc.ID, section.ToRaw(exports), doc.Template)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("saving section failed: %v", err)), nil
	}
	audit.Record(ctx, s.audit, audit.Entry{
		ActorType:     audit.ActorAgent,
		ActorID:       agentID,
		Action:        audit.ActionSectionUpdated,
		Scope:         audit.ScopeSection,
		ScopeID:       fmt.Sprintf("%s#%d", doc.ID, index),
		DocumentID:    doc.ID,
		Summary:       "Updated " + strings.Join(changed, ", "),
		PreviousValue: documents.AuditValue(before),
		NewValue:      documents.AuditValue(res.Sections[index]),
	})
	return mcp.NewToolResultText(fmt.Sprintf("Section %d updated (%s). %s", index, strings.Join(changed, ", "), res.Message)), nil
}

// handleRenderPreview renders the stored sections to the preview payload.
func (s *Server) handleRenderPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := s.loadDocument(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	payload := s.renderer.BuildPayload(ctx, doc.Sections(), render.Data{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Template:   doc.Template,
		Now:        time.Now(),
	})
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding preview failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleApplySections replaces every section of a page.
func (s *Server) handleApplySections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := s.loadDocument(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	raw, err := request.RequireString("sections")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sections"), nil
	}
	var sections any
	if err := json.Unmarshal([]byte(raw), &sections); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sections is not valid JSON: %v", err)), nil
	}

	previous := section.ExportAll(doc.Sections())
	res, err := s.docs.ApplySections(ctx, doc.ID, sections, request.GetString("page_template", ""))
	if errors.Is(err, documents.ErrInvalidPayload) {
		return mcp.NewToolResultError("sections must be a JSON array of section objects"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("applying sections failed: %v", err)), nil
	}
	audit.Record(ctx, s.audit, audit.Entry{
		ActorType:     audit.ActorAgent,
		ActorID:       agentID,
		Action:        audit.ActionSectionsApplied,
		Scope:         audit.ScopeDocument,
		ScopeID:       doc.ID,
		DocumentID:    doc.ID,
		Summary:       fmt.Sprintf("Applied %d sections", len(res.Sections)),
		PreviousValue: documents.AuditValue(previous),
		NewValue:      documents.AuditValue(res.Sections),
	})
	return mcp.NewToolResultText(fmt.Sprintf("%s %d sections, template %s.", res.Message, len(res.Sections), res.Template)), nil
}
