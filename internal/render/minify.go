package render

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	cssComment    = regexp.MustCompile(`/\*[^*]*\*+([^/][^*]*\*+)*/`)
	cssPunct      = regexp.MustCompile(`\s*([{};:,>~+])\s*`)
	jsBlock       = regexp.MustCompile(`/\*(?:[^!][\s\S]*?)?\*/`)
	jsLine        = regexp.MustCompile(`(?m)([\s;{}(,=])//(?:[^/\n][^\n]*)?$`)
	jsPunct       = regexp.MustCompile(`\s*([{};,])\s*`)
	whitespace    = regexp.MustCompile(`\s+`)
	htmlKeep      = regexp.MustCompile(`(?is)<(pre|code|script|style|textarea)\b[^>]*>.*?</(?:pre|code|script|style|textarea)>`)
	htmlComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlCondition = regexp.MustCompile(`^<!--\[if\s`)
	htmlGap       = regexp.MustCompile(`>\s+<`)

	cssScriptTag = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	cssStyleTag  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	cssAnyTag    = regexp.MustCompile(`<[^>]*>`)
	cssImport    = regexp.MustCompile(`(?i)@import\s+url\s*\(\s*["']?\s*(?:javascript|data)\s*:`)
	cssDataHTML  = regexp.MustCompile(`(?i)url\s*\(\s*["']?\s*data\s*:\s*text/html`)
)

var cssVectors = strings.NewReplacer(
	"javascript:", "",
	"expression(", "",
	"-moz-binding:", "",
	"behavior:", "",
)

// SanitizeCSS strips markup and the known script vectors from a
// stylesheet. Blocked imports and data urls keep their shape with a
// blocked: scheme.
func SanitizeCSS(css string) string {
	css = cssScriptTag.ReplaceAllString(css, "")
	css = cssStyleTag.ReplaceAllString(css, "")
	css = cssAnyTag.ReplaceAllString(css, "")
	css = strings.TrimSpace(css)
	css = cssVectors.Replace(css)
	css = cssImport.ReplaceAllString(css, "@import url(blocked:")
	css = cssDataHTML.ReplaceAllString(css, "url(blocked:")
	return css
}

// MinifyCSS removes comments and insignificant whitespace.
func MinifyCSS(css string) string {
	css = cssComment.ReplaceAllString(css, "")
	css = strings.NewReplacer("\r\n", "", "\r", "", "\n", "", "\t", "").Replace(css)
	css = whitespace.ReplaceAllString(css, " ")
	css = cssPunct.ReplaceAllString(css, "$1")
	css = strings.ReplaceAll(css, ";}", "}")
	return strings.TrimSpace(css)
}

// MinifyJS drops comments and collapses whitespace. Block comments
// starting with /*! are kept, as are line comments that do not follow a
// statement boundary, which protects url literals such as "http://".
func MinifyJS(js string) string {
	js = jsBlock.ReplaceAllString(js, "")
	js = jsLine.ReplaceAllString(js, "$1")
	js = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ").Replace(js)
	js = whitespace.ReplaceAllString(js, " ")
	js = jsPunct.ReplaceAllString(js, "$1")
	return strings.TrimSpace(js)
}

// MinifyHTML removes comments other than conditional comments and
// collapses whitespace between tags. Contents of pre, code, script,
// style and textarea elements are kept verbatim.
func MinifyHTML(html string) string {
	var kept []string
	html = htmlKeep.ReplaceAllStringFunc(html, func(m string) string {
		kept = append(kept, m)
		return "\x00" + strconv.Itoa(len(kept)-1) + "\x00"
	})
	html = htmlComment.ReplaceAllStringFunc(html, func(m string) string {
		if htmlCondition.MatchString(m) {
			return m
		}
		return ""
	})
	html = htmlGap.ReplaceAllString(html, "> <")
	html = whitespace.ReplaceAllString(html, " ")
	for i, block := range kept {
		html = strings.Replace(html, "\x00"+strconv.Itoa(i)+"\x00", block, 1)
	}
	return strings.TrimSpace(html)
}
