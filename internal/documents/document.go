// Package documents stores pages as ordered block lists and splices the
// builder's sections into them.
package documents

import (
	"encoding/json"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/section"
)

// SectionBlock names blocks that hold one builder section.
const SectionBlock = "pageblocks/section"

// Page templates a document can use.
const (
	TemplateDefault     = "default"
	TemplateBuilder     = "page-blocks-builder"
	TemplateFullBuilder = "page-blocks-full-builder"
)

// IsBuilderTemplate reports whether t renders through the builder.
func IsBuilderTemplate(t string) bool {
	return t == TemplateBuilder || t == TemplateFullBuilder
}

// TemplateSlug returns the template identifier handed to the builder.
func TemplateSlug(t string) string {
	if t == "" || t == TemplateDefault {
		return "default-template"
	}
	return t
}

// Block is one node of a document body. Section blocks carry the
// section fields in Attrs; other blocks are kept opaque.
type Block struct {
	Name  string         `json:"name"`
	Attrs map[string]any `json:"attrs,omitempty"`
	HTML  string         `json:"html,omitempty"`
	Inner []Block        `json:"inner,omitempty"`
}

// IsSection reports whether b is a section block.
func (b Block) IsSection() bool { return b.Name == SectionBlock }

// Document is a stored page.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Template  string    `json:"template"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sections returns the builder sections of d in document order,
// including those nested in container blocks.
func (d *Document) Sections() []section.Section {
	var out []section.Section
	for _, b := range FindSectionBlocks(d.Blocks) {
		s, _ := section.NormalizeStored(b.Attrs)
		out = append(out, s)
	}
	return out
}

// FindSectionBlocks flattens every section block of blocks depth-first.
func FindSectionBlocks(blocks []Block) []Block {
	var found []Block
	for _, b := range blocks {
		if b.IsSection() {
			found = append(found, b)
		}
		if len(b.Inner) > 0 {
			found = append(found, FindSectionBlocks(b.Inner)...)
		}
	}
	return found
}

// SectionAttrs converts a section to block attributes.
func SectionAttrs(s section.Section) map[string]any {
	e := s.Export()
	return map[string]any{
		"content":    e.Content,
		"css":        e.CSS,
		"js":         e.JS,
		"jsLocation": string(e.JSLocation),
		"format":     e.Format,
		"phpExec":    e.PHPExec,
	}
}

// ReplaceSections drops every top-level section block and inserts
// sections where the first one was. Without an existing section block
// the sections are appended.
func ReplaceSections(blocks []Block, sections []section.Section) []Block {
	kept := make([]Block, 0, len(blocks))
	slot := -1
	for _, b := range blocks {
		if b.IsSection() {
			if slot == -1 {
				slot = len(kept)
			}
			continue
		}
		kept = append(kept, b)
	}
	if slot == -1 {
		slot = len(kept)
	}
	out := make([]Block, 0, len(kept)+len(sections))
	out = append(out, kept[:slot]...)
	for _, s := range sections {
		out = append(out, Block{Name: SectionBlock, Attrs: SectionAttrs(s)})
	}
	return append(out, kept[slot:]...)
}

// DecodeBlocks reads a stored body. Bodies written before block storage
// are plain section lists; each entry becomes a section block.
func DecodeBlocks(raw []byte) ([]Block, error) {
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	legacy := len(entries) > 0
	for _, e := range entries {
		if _, named := e["name"]; named {
			legacy = false
			break
		}
	}
	if legacy {
		blocks := make([]Block, 0, len(entries))
		for _, e := range entries {
			blocks = append(blocks, Block{Name: SectionBlock, Attrs: e})
		}
		return blocks, nil
	}
	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// SectionsToBlocks wraps sections as a fresh body.
func SectionsToBlocks(sections []section.Section) []Block {
	return ReplaceSections(nil, sections)
}
