// Package render turns sections into published markup: template
// execution, formatting, sanitizing and minification for both the
// builder preview payload and the published page.
package render

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"log"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

var templateAction = regexp.MustCompile(`(?s)\{\{.*?\}\}`)

// Capability decides whether template actions in content may run.
type Capability func(ctx context.Context, content string) bool

// Deny never allows template execution.
func Deny(context.Context, string) bool { return false }

// Allow always allows template execution.
func Allow(context.Context, string) bool { return true }

// Data is what section templates can reference.
type Data struct {
	DocumentID string
	Title      string
	Template   string
	Now        time.Time
}

// Renderer renders section content. The zero value is not usable; call
// New.
type Renderer struct {
	md      goldmark.Markdown
	canExec Capability
	funcs   template.FuncMap
}

// New creates a renderer. A nil capability denies template execution.
func New(canExec Capability) *Renderer {
	if canExec == nil {
		canExec = Deny
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
		canExec: canExec,
		funcs: template.FuncMap{
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"year":  func(t time.Time) int { return t.Year() },
		},
	}
}

// HasTemplate reports whether content carries template actions.
func HasTemplate(content string) bool {
	return strings.Contains(content, "{{")
}

// CanExecute reports whether the template actions of content may run.
func (r *Renderer) CanExecute(ctx context.Context, content string) bool {
	return r.canExec(ctx, content)
}

// Execute runs the template actions of content. Without the capability
// the actions are removed and the surrounding markup is kept. A failing
// template yields its partial output.
func (r *Renderer) Execute(ctx context.Context, content string, data Data) string {
	if !HasTemplate(content) {
		return content
	}
	if !r.CanExecute(ctx, content) {
		return templateAction.ReplaceAllString(content, "")
	}
	tmpl, err := template.New("section").Funcs(r.funcs).Option("missingkey=zero").Parse(content)
	if err != nil {
		log.Printf("[render] template parse failed: %v", err)
		return templateAction.ReplaceAllString(content, "")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Printf("[render] template execution failed: %v", err)
	}
	return buf.String()
}

// Format converts markdown-flavored content to HTML. Raw HTML passes
// through unchanged.
func (r *Renderer) Format(content string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		log.Printf("[render] format failed: %v", err)
		return content
	}
	return buf.String()
}

// Content runs the content pipeline of one section: template execution
// when enabled, then formatting when enabled.
func (r *Renderer) Content(ctx context.Context, s section.Section, data Data) string {
	content := s.Content
	if content == "" {
		return ""
	}
	if s.PHPExec {
		content = r.Execute(ctx, content, data)
	}
	if s.Format {
		content = r.Format(content)
	}
	return content
}

// BuildPayload renders the preview payload for sections: html joined
// by newlines, css by newlines, and scripts by ";\n" per location.
func (r *Renderer) BuildPayload(ctx context.Context, sections []section.Section, data Data) preview.Rendered {
	var htmlOut, cssOut, inline, footer []string
	for _, s := range sections {
		if s.Content != "" {
			htmlOut = append(htmlOut, MinifyHTML(r.Content(ctx, s, data)))
		}
		if s.CSS != "" {
			cssOut = append(cssOut, MinifyCSS(s.CSS))
		}
		if s.JS != "" {
			js := MinifyJS(s.JS)
			if s.JSLocation == section.JSInline {
				inline = append(inline, js)
			} else {
				footer = append(footer, js)
			}
		}
	}
	return preview.Rendered{
		HTML:     strings.Join(htmlOut, "\n"),
		CSS:      strings.Join(cssOut, "\n"),
		JSInline: strings.Join(inline, ";\n"),
		JSFooter: strings.Join(footer, ";\n"),
	}
}

// ScriptID derives the stable element id of a minified script.
func ScriptID(js string) string {
	sum := md5.Sum([]byte(js))
	return "pb-" + hex.EncodeToString(sum[:])[:8]
}
