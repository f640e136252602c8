package preview

import (
	"regexp"
	"strconv"
	"strings"
)

// Scroll positions within the viewport.
const (
	ScrollStart  = "start"
	ScrollCenter = "center"
)

var (
	cursorID    = regexp.MustCompile(`(?i)id\s*=\s*["']([^"']+)["']`)
	cursorClass = regexp.MustCompile(`(?i)class\s*=\s*["']([^"']+)["']`)
	cursorTag   = regexp.MustCompile(`(?i)<(section|article|header|footer|nav|main|aside|div|h[1-6])\b`)
)

// Scroll tells the preview surface which element to bring into view.
// The surface tries the candidates in order: the element with ID, the
// first element with Class, the TagIndex-th Tag inside the section
// marker (clamped to the tags present), then the marker itself.
type Scroll struct {
	Section  int    `json:"section"`
	Marker   string `json:"marker"`
	ID       string `json:"id,omitempty"`
	Class    string `json:"class,omitempty"`
	Tag      string `json:"tag,omitempty"`
	TagIndex int    `json:"tagIndex,omitempty"`
	Block    string `json:"block"`
}

// SectionMarker is the selector of the wrapper Local emits for the
// section at index.
func SectionMarker(index int) string {
	return `[data-pb-section="` + strconv.Itoa(index) + `"]`
}

// ScrollToSection targets the top of a section wrapper.
func ScrollToSection(index int) Scroll {
	return Scroll{Section: index, Marker: SectionMarker(index), Block: ScrollStart}
}

// ScrollToCursor targets the element written on the line of content
// that holds pos. It reports false when the line names no id, class or
// block tag.
func ScrollToCursor(index int, content string, pos int) (Scroll, bool) {
	pos = max(0, min(pos, len(content)))
	start := strings.LastIndexByte(content[:pos], '\n') + 1
	end := strings.IndexByte(content[pos:], '\n')
	if end < 0 {
		end = len(content)
	} else {
		end += pos
	}
	line := content[start:end]

	target := Scroll{Section: index, Marker: SectionMarker(index), Block: ScrollCenter}
	if m := cursorID.FindStringSubmatch(line); m != nil {
		target.ID = m[1]
	}
	if m := cursorClass.FindStringSubmatch(line); m != nil {
		if fields := strings.Fields(m[1]); len(fields) > 0 {
			target.Class = fields[0]
		}
	}
	if m := cursorTag.FindStringSubmatch(line); m != nil {
		target.Tag = strings.ToLower(m[1])
		count := regexp.MustCompile(`(?i)<` + target.Tag + `\b`)
		target.TagIndex = max(0, len(count.FindAllStringIndex(content[:end], -1))-1)
	}
	if target.ID == "" && target.Class == "" && target.Tag == "" {
		return Scroll{}, false
	}
	return target, true
}
