// Package preview assembles the live preview document and schedules
// debounced, sequenced preview renders.
package preview

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ziadkadry99/pageblocks/internal/section"
)

const helperCSS = `<style>.share-sticky{display:none !important;visibility:hidden !important;opacity:0 !important;pointer-events:none !important;}</style>`

// Injection holds host-supplied text placed into fixed slots of the
// preview document. It is opaque and never escaped except for closing
// tags inside style and script wrappers.
type Injection struct {
	HeadHTML      string `json:"headHtml" koanf:"head_html" yaml:"head_html"`
	BodyStartHTML string `json:"bodyStartHtml" koanf:"body_start_html" yaml:"body_start_html"`
	BodyEndHTML   string `json:"bodyEndHtml" koanf:"body_end_html" yaml:"body_end_html"`
	CSS           string `json:"css" koanf:"css" yaml:"css"`
	JSHead        string `json:"jsHead" koanf:"js_head" yaml:"js_head"`
	JSFooter      string `json:"jsFooter" koanf:"js_footer" yaml:"js_footer"`
}

// NormalizeInjection reads an injection from a loosely typed host value.
// Missing or non-string fields become empty strings.
func NormalizeInjection(v any) Injection {
	obj, _ := v.(map[string]any)
	str := func(key string) string {
		s, _ := obj[key].(string)
		return s
	}
	return Injection{
		HeadHTML:      str("headHtml"),
		BodyStartHTML: str("bodyStartHtml"),
		BodyEndHTML:   str("bodyEndHtml"),
		CSS:           str("css"),
		JSHead:        str("jsHead"),
		JSFooter:      str("jsFooter"),
	}
}

// Rendered is the server render payload. When present, its fields
// replace the locally assembled html, css and scripts. A decoded reply
// that lacks a field, or carries a non-string value for it, keeps the
// local value for that field.
type Rendered struct {
	HTML     string `json:"html"`
	CSS      string `json:"css"`
	JSInline string `json:"jsInline"`
	JSFooter string `json:"jsFooter"`

	missing [4]bool
}

func (r *Rendered) UnmarshalJSON(data []byte) error {
	var raw struct {
		HTML     json.RawMessage `json:"html"`
		CSS      json.RawMessage `json:"css"`
		JSInline json.RawMessage `json:"jsInline"`
		JSFooter json.RawMessage `json:"jsFooter"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Rendered{}
	for i, f := range []struct {
		raw json.RawMessage
		dst *string
	}{
		{raw.HTML, &r.HTML},
		{raw.CSS, &r.CSS},
		{raw.JSInline, &r.JSInline},
		{raw.JSFooter, &r.JSFooter},
	} {
		var v *string
		if len(f.raw) == 0 || json.Unmarshal(f.raw, &v) != nil || v == nil {
			r.missing[i] = true
			continue
		}
		*f.dst = *v
	}
	return nil
}

// over returns r with missing fields taken from local.
func (r Rendered) over(local Rendered) Rendered {
	out := r
	for i, f := range []struct{ dst, src *string }{
		{&out.HTML, &local.HTML},
		{&out.CSS, &local.CSS},
		{&out.JSInline, &local.JSInline},
		{&out.JSFooter, &local.JSFooter},
	} {
		if r.missing[i] {
			*f.dst = *f.src
		}
	}
	out.missing = [4]bool{}
	return out
}

// Visible returns the sections that are not collapsed.
func Visible(sections []section.Section) []section.Section {
	out := make([]section.Section, 0, len(sections))
	for _, s := range sections {
		if !s.Collapsed {
			out = append(out, s)
		}
	}
	return out
}

// NeedsServer reports whether any section must be rendered by the host
// because it is formatted or runs server templates.
func NeedsServer(sections []section.Section) bool {
	for _, s := range sections {
		if s.Format || s.PHPExec {
			return true
		}
	}
	return false
}

// Local builds the payload from visible sections without the host.
// Each section is wrapped in a div carrying its model index.
func Local(sections []section.Section) Rendered {
	var html, css, inline, footer []string
	for i, s := range sections {
		if s.Collapsed {
			continue
		}
		html = append(html, `<div data-pb-section="`+strconv.Itoa(i)+`">`+s.Content+`</div>`)
		if s.CSS != "" {
			css = append(css, s.CSS)
		}
		if s.JS != "" {
			if s.JSLocation == section.JSInline {
				inline = append(inline, s.JS)
			} else {
				footer = append(footer, s.JS)
			}
		}
	}
	return Rendered{
		HTML:     strings.Join(html, "\n"),
		CSS:      strings.Join(css, "\n"),
		JSInline: strings.Join(inline, ";\n"),
		JSFooter: strings.Join(footer, ";\n"),
	}
}

// Assemble produces the full preview document. A nil rendered payload
// means local assembly.
func Assemble(sections []section.Section, assets Assets, inj Injection, rendered *Rendered) string {
	out := Local(sections)
	if rendered != nil {
		out = rendered.over(out)
	}

	var b strings.Builder
	b.WriteString(`<!doctype html><html><head><meta charset="utf-8">`)
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	for _, u := range assets.StyleURLs {
		b.WriteString(`<link rel="stylesheet" href="` + EscapeAttribute(u) + `">`)
	}
	for _, s := range assets.InlineStyles {
		b.WriteString(styleTag(s))
	}
	b.WriteString(inj.HeadHTML)
	b.WriteString(helperCSS)
	b.WriteString(optional(inj.CSS, styleTag))
	b.WriteString(optional(out.CSS, styleTag))
	b.WriteString(optional(inj.JSHead, scriptTag))
	b.WriteString(optional(out.JSInline, scriptTag))
	b.WriteString(`</head><body>`)
	b.WriteString(inj.BodyStartHTML)
	b.WriteString(out.HTML)
	for _, u := range assets.ScriptURLs {
		b.WriteString(`<script src="` + EscapeAttribute(u) + `"></script>`)
	}
	b.WriteString(optional(inj.JSFooter, scriptTag))
	b.WriteString(optional(out.JSFooter, scriptTag))
	b.WriteString(inj.BodyEndHTML)
	b.WriteString(`</body></html>`)
	return b.String()
}

func optional(s string, wrap func(string) string) string {
	if s == "" {
		return ""
	}
	return wrap(s)
}

func styleTag(s string) string {
	return "<style>" + EscapeClosingTag(s, "style") + "</style>"
}

func scriptTag(s string) string {
	return "<script>" + EscapeClosingTag(s, "script") + "</script>"
}

var (
	closingTagMu       sync.Mutex
	closingTagPatterns = map[string]*regexp.Regexp{}
)

// EscapeClosingTag rewrites every case-insensitive "</tag" in content
// to "<\/tag" so the text cannot end its wrapping element.
func EscapeClosingTag(content, tag string) string {
	closingTagMu.Lock()
	re, ok := closingTagPatterns[tag]
	if !ok {
		re = regexp.MustCompile(`(?i)</` + regexp.QuoteMeta(tag))
		closingTagPatterns[tag] = re
	}
	closingTagMu.Unlock()
	return re.ReplaceAllLiteralString(content, `<\/`+tag)
}

// EscapeAttribute escapes a value for a double-quoted attribute.
func EscapeAttribute(v string) string {
	return strings.NewReplacer("&", "&amp;", `"`, "&quot;").Replace(v)
}
