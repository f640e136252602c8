package assist

import (
	"regexp"
	"strings"
)

var (
	styleBlock  = regexp.MustCompile(`(?is)<style\b([^>]*)>(.*?)</style>`)
	scriptBlock = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script>`)
	quotedID    = regexp.MustCompile(`(?i)\bid\s*=\s*(?:"ai-generated"|'ai-generated')`)
	bareID      = regexp.MustCompile(`(?i)\bid\s*=\s*ai-generated(?:\s|$)`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// Bundle is the result of splitting a generated HTML answer into its
// markup, style and script parts.
type Bundle struct {
	HTML   string
	CSS    string
	JS     string
	HasCSS bool
	HasJS  bool
}

// HasBundle reports whether any sentinel block was found.
func (b Bundle) HasBundle() bool { return b.HasCSS || b.HasJS }

func hasSentinel(attrs string) bool {
	return quotedID.MatchString(attrs) || bareID.MatchString(attrs)
}

// ExtractBundle moves <style id="ai-generated"> and
// <script id="ai-generated"> blocks out of html. Blocks without the
// sentinel id stay in the markup.
func ExtractBundle(html string) Bundle {
	b := Bundle{HTML: html}
	if html == "" {
		return b
	}
	out := extract(html, styleBlock, &b.CSS, &b.HasCSS)
	out = extract(out, scriptBlock, &b.JS, &b.HasJS)
	b.HTML = strings.TrimSpace(blankRuns.ReplaceAllString(out, "\n\n"))
	return b
}

func extract(src string, re *regexp.Regexp, into *string, found *bool) string {
	return re.ReplaceAllStringFunc(src, func(match string) string {
		m := re.FindStringSubmatch(match)
		if !hasSentinel(m[1]) {
			return match
		}
		*found = true
		*into = joinChunk(*into, strings.TrimSpace(m[2]))
		return ""
	})
}

// joinChunk appends chunk to dst separated by a blank line.
func joinChunk(dst, chunk string) string {
	if chunk == "" {
		return dst
	}
	if strings.TrimSpace(dst) == "" {
		return chunk
	}
	return strings.TrimRight(dst, "\n") + "\n\n" + chunk
}
