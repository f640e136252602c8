package section

import (
	"encoding/json"
	"regexp"
	"strings"
)

// JSLocation controls where a section's script is emitted.
type JSLocation string

const (
	JSFooter JSLocation = "footer"
	JSInline JSLocation = "inline"
)

// ParseJSLocation maps any value onto a known location. Anything other
// than "inline" is treated as footer.
func ParseJSLocation(v any) JSLocation {
	if s, ok := v.(string); ok && s == string(JSInline) {
		return JSInline
	}
	return JSFooter
}

// Field names a user-editable attribute of a section.
type Field string

const (
	FieldContent    Field = "content"
	FieldCSS        Field = "css"
	FieldJS         Field = "js"
	FieldJSLocation Field = "jsLocation"
	FieldFormat     Field = "format"
	FieldPHPExec    Field = "phpExec"
)

// Section is one HTML/CSS/JS unit of a page.
type Section struct {
	Content    string     `json:"content"`
	CSS        string     `json:"css"`
	JS         string     `json:"js"`
	JSLocation JSLocation `json:"jsLocation"`
	Format     bool       `json:"format"`
	PHPExec    bool       `json:"phpExec"`
	Collapsed  bool       `json:"collapsed"`
}

// Export is the host-agnostic shape used for apply payloads, autosave
// snapshots and preview render requests. It never carries UI-only state.
type Export struct {
	Content    string     `json:"content"`
	CSS        string     `json:"css"`
	JS         string     `json:"js"`
	JSLocation JSLocation `json:"jsLocation"`
	Format     bool       `json:"format"`
	PHPExec    bool       `json:"phpExec"`
}

// Default returns a fresh empty section.
func Default() Section {
	return Section{JSLocation: JSFooter}
}

// Export converts the section to its export shape.
func (s Section) Export() Export {
	return Export{
		Content:    s.Content,
		CSS:        s.CSS,
		JS:         s.JS,
		JSLocation: ParseJSLocation(string(s.JSLocation)),
		Format:     s.Format,
		PHPExec:    s.PHPExec,
	}
}

// Section converts an exported record back to a (non-collapsed) section.
func (e Export) Section() Section {
	return Section{
		Content:    e.Content,
		CSS:        e.CSS,
		JS:         e.JS,
		JSLocation: ParseJSLocation(string(e.JSLocation)),
		Format:     e.Format,
		PHPExec:    e.PHPExec,
	}
}

// Normalize builds a section from an arbitrary decoded JSON value.
// Missing or wrongly typed fields fall back to their zero values; ok is
// false when the input is not an object at all.
func Normalize(v any) (s Section, ok bool) {
	s = Default()
	obj, isObj := v.(map[string]any)
	if !isObj {
		return s, false
	}
	s.Content = stringField(obj, "content")
	s.CSS = stringField(obj, "css")
	s.JS = stringField(obj, "js")
	s.JSLocation = ParseJSLocation(obj["jsLocation"])
	s.Format = truthy(obj["format"])
	s.PHPExec = truthy(obj["phpExec"])
	s.Collapsed = truthy(obj["collapsed"])
	return s, true
}

// NormalizeAll normalizes every object entry of raw. Non-array input
// yields ok=false. Non-object entries are skipped.
func NormalizeAll(raw any) (out []Section, ok bool) {
	list, isList := raw.([]any)
	if !isList {
		return nil, false
	}
	for _, item := range list {
		if s, valid := Normalize(item); valid {
			out = append(out, s)
		}
	}
	return out, true
}

// DecodeJSON decodes a JSON document into the loosely typed form accepted
// by Normalize and Hydrate. Malformed JSON decodes to nil.
func DecodeJSON(data []byte) any {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return raw
}

// ExportAll converts sections to their export shape.
func ExportAll(sections []Section) []Export {
	out := make([]Export, len(sections))
	for i, s := range sections {
		out[i] = s.Export()
	}
	return out
}

// FromExports converts an exported list back to sections.
func FromExports(exports []Export) []Section {
	out := make([]Section, len(exports))
	for i, e := range exports {
		out[i] = e.Section()
	}
	return out
}

// ToRaw converts exported records to the loosely typed form, so that they
// can be fed back through Hydrate.
func ToRaw(exports []Export) []any {
	out := make([]any, len(exports))
	for i, e := range exports {
		out[i] = map[string]any{
			"content":    e.Content,
			"css":        e.CSS,
			"js":         e.JS,
			"jsLocation": string(e.JSLocation),
			"format":     e.Format,
			"phpExec":    e.PHPExec,
		}
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

// truthy follows loose host semantics: non-zero numbers, non-empty
// strings other than "0" and "false", and true are truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != "" && t != "0" && t != "false"
	case nil:
		return false
	default:
		return true
	}
}

var idAttrPattern = regexp.MustCompile(`(?i)id=(["'])([^"']+)(["'])`)

// copyIDs rewrites the first id attribute so a duplicate does not clash
// with its source.
func copyIDs(content string) string {
	loc := idAttrPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return content
	}
	quote := content[loc[2]:loc[3]]
	closing := content[loc[6]:loc[7]]
	if quote != closing {
		return content
	}
	id := content[loc[4]:loc[5]]
	if strings.HasSuffix(id, "-copy") {
		return content
	}
	return content[:loc[0]] + "id=" + quote + id + "-copy" + quote + content[loc[1]:]
}
