package section

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxMetaClasses bounds the class chips shown for the active section.
const maxMetaClasses = 8

// Meta is the list-view summary of one section.
type Meta struct {
	Name      string   `json:"name"`
	ID        string   `json:"id"`
	Classes   []string `json:"classes"`
	Collapsed bool     `json:"collapsed"`
}

// Describe builds list-view metadata for the section at position index.
func Describe(s Section, index int) Meta {
	fallback := fmt.Sprintf("section-%d", index+1)
	meta := Meta{
		Name:      fmt.Sprintf("Section %d", index+1),
		ID:        fallback,
		Classes:   []string{},
		Collapsed: s.Collapsed,
	}
	if strings.TrimSpace(s.Content) == "" {
		return meta
	}
	doc, err := html.Parse(strings.NewReader(s.Content))
	if err != nil {
		return meta
	}

	var sectionID, heading, firstID string
	var firstClasses []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			id := attr(n, "id")
			if n.DataAtom == atom.Section && id != "" && sectionID == "" {
				sectionID = id
			}
			if firstID == "" && id != "" {
				firstID = id
			}
			if firstClasses == nil {
				if cls := strings.Fields(attr(n, "class")); len(cls) > 0 {
					firstClasses = cls
				}
			}
			if heading == "" && isHeading(n.DataAtom) {
				heading = strings.Join(strings.Fields(textOf(n)), " ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch {
	case sectionID != "":
		meta.Name = sectionID
	case heading != "":
		meta.Name = heading
	}
	if firstID != "" {
		meta.ID = firstID
	}
	if len(firstClasses) > maxMetaClasses {
		firstClasses = firstClasses[:maxMetaClasses]
	}
	if firstClasses != nil {
		meta.Classes = firstClasses
	}
	return meta
}

// DescribeAll builds metadata for every section in order.
func DescribeAll(sections []Section) []Meta {
	out := make([]Meta, len(sections))
	for i, s := range sections {
		out[i] = Describe(s, i)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isHeading(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
