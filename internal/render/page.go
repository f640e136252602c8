package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

// Page is a rendered document body plus its deferred scripts.
type Page struct {
	Body string
	// Footer holds the queued footer script elements, in first-seen
	// order with duplicates removed.
	Footer string
}

type footerQueue struct {
	ids     []string
	scripts map[string]string
}

func (q *footerQueue) push(id, js string) {
	if q.scripts == nil {
		q.scripts = make(map[string]string)
	}
	if _, ok := q.scripts[id]; !ok {
		q.ids = append(q.ids, id)
	}
	q.scripts[id] = js
}

func (q *footerQueue) flush() string {
	var b strings.Builder
	for _, id := range q.ids {
		b.WriteString(scriptElement(id, q.scripts[id]))
	}
	return b.String()
}

func scriptElement(id, js string) string {
	return `<script id="page-block-js-` + template.HTMLEscapeString(id) + `">` + js + "</script>\n"
}

// Block renders one section for the published page. Inline scripts are
// emitted in place; footer scripts are pushed to the queue.
func (r *Renderer) block(ctx context.Context, s section.Section, data Data, q *footerQueue) string {
	var b strings.Builder
	if s.CSS != "" {
		b.WriteString("<style>" + MinifyCSS(SanitizeCSS(s.CSS)) + "</style>\n")
	}
	if s.Content != "" {
		b.WriteString(MinifyHTML(r.Content(ctx, s, data)))
	}
	if s.JS != "" {
		js := MinifyJS(s.JS)
		id := ScriptID(js)
		if s.JSLocation == section.JSInline {
			b.WriteString(scriptElement(id, js))
		} else {
			q.push(id, js)
		}
	}
	return b.String()
}

// Page renders every section of a document for publishing.
func (r *Renderer) Page(ctx context.Context, sections []section.Section, data Data) Page {
	var (
		q    footerQueue
		body strings.Builder
	)
	for _, s := range sections {
		body.WriteString(r.block(ctx, s, data, &q))
	}
	return Page{Body: body.String(), Footer: q.flush()}
}

// documentTemplate wraps a published page.
const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
{{- range .Styles}}
  <link rel="stylesheet" href="{{.}}">
{{- end}}
{{- if .Injection.HeadHTML}}
  {{.Injection.HeadHTML}}
{{- end}}
</head>
<body class="pb-template-{{.Template}}">
{{.Body}}
{{.Footer}}
</body>
</html>
`

var document = template.Must(template.New("document").Parse(documentTemplate))

// DocumentInput describes a full published document.
type DocumentInput struct {
	Data      Data
	Sections  []section.Section
	Styles    []string
	Injection preview.Injection
}

// Document renders a complete HTML document for publishing.
func (r *Renderer) Document(ctx context.Context, in DocumentInput) (string, error) {
	page := r.Page(ctx, in.Sections, in.Data)
	title := in.Data.Title
	if title == "" {
		title = in.Data.DocumentID
	}
	var buf bytes.Buffer
	err := document.Execute(&buf, map[string]any{
		"Title":     title,
		"Template":  strings.TrimSuffix(in.Data.Template, filepath.Ext(in.Data.Template)),
		"Styles":    in.Styles,
		"Injection": map[string]template.HTML{"HeadHTML": template.HTML(in.Injection.HeadHTML)},
		"Body":      template.HTML(page.Body),
		"Footer":    template.HTML(page.Footer),
	})
	if err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	return buf.String(), nil
}

// Export writes one rendered document per input into dir as
// <id>/index.html and returns the number of files written.
func (r *Renderer) Export(ctx context.Context, dir string, inputs []DocumentInput) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}
	written := 0
	for _, in := range inputs {
		out, err := r.Document(ctx, in)
		if err != nil {
			return written, fmt.Errorf("rendering %s: %w", in.Data.DocumentID, err)
		}
		target := filepath.Join(dir, in.Data.DocumentID)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return written, fmt.Errorf("creating %s: %w", target, err)
		}
		if err := os.WriteFile(filepath.Join(target, "index.html"), []byte(out), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", target, err)
		}
		written++
	}
	return written, nil
}
