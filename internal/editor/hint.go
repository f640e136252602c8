package editor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ziadkadry99/pageblocks/internal/section"
)

// MaxSuggestions caps every completion list.
const MaxSuggestions = 200

var (
	openClassAttr = regexp.MustCompile(`(?i)class\s*=\s*["']([^"']*)$`)
	classAttr     = regexp.MustCompile(`(?i)class\s*=\s*["']([^"']+)["']`)
	cssClassFrag  = regexp.MustCompile(`\.([a-zA-Z_-][\w-]*)$`)
)

// Hint is a completion request: the lowercased fragment being typed and
// the column range it occupies on the cursor line.
type Hint struct {
	Fragment string `json:"fragment"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// HintContext finds an open class attribute before column ch of line
// and returns the partial class name being typed.
func HintContext(line string, ch int) (Hint, bool) {
	if ch > len(line) {
		ch = len(line)
	}
	if ch < 0 {
		return Hint{}, false
	}
	m := openClassAttr.FindStringSubmatch(line[:ch])
	if m == nil {
		return Hint{}, false
	}
	value := m[1]
	fragment := value[strings.LastIndexFunc(value, unicode.IsSpace)+1:]
	from := ch - len(fragment)
	if from < 0 {
		from = 0
	}
	return Hint{Fragment: strings.ToLower(fragment), From: from, To: ch}, true
}

// CSSHintContext finds a `.name` selector fragment ending at column ch.
func CSSHintContext(line string, ch int) (Hint, bool) {
	if ch > len(line) {
		ch = len(line)
	}
	if ch < 0 {
		return Hint{}, false
	}
	m := cssClassFrag.FindStringSubmatch(line[:ch])
	if m == nil {
		return Hint{}, false
	}
	return Hint{Fragment: strings.ToLower(m[1]), From: ch - len(m[1]), To: ch}, true
}

// Vocabulary is a sorted, de-duplicated list of class names.
type Vocabulary []string

// NewVocabulary trims leading dots and blanks, drops duplicates and sorts
// naturally, ignoring case.
func NewVocabulary(classes []string) Vocabulary {
	seen := make(map[string]bool, len(classes))
	out := make(Vocabulary, 0, len(classes))
	for _, c := range classes {
		c = strings.TrimPrefix(strings.TrimSpace(c), ".")
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return NaturalLess(out[i], out[j]) })
	return out
}

// Suggest ranks vocabulary entries for fragment: prefix matches first,
// and only if there are none, substring matches. An empty fragment
// returns the head of the vocabulary.
func Suggest(vocab Vocabulary, fragment string) []string {
	fragment = strings.ToLower(fragment)
	var list []string
	for _, c := range vocab {
		if fragment == "" || strings.HasPrefix(strings.ToLower(c), fragment) {
			list = append(list, c)
			if len(list) == MaxSuggestions {
				return list
			}
		}
	}
	if len(list) > 0 || fragment == "" {
		return list
	}
	for _, c := range vocab {
		if strings.Contains(strings.ToLower(c), fragment) {
			list = append(list, c)
			if len(list) == MaxSuggestions {
				break
			}
		}
	}
	return list
}

// SuggestPrefix returns only prefix matches. The CSS tab uses it for
// `.name` completion.
func SuggestPrefix(vocab Vocabulary, fragment string) []string {
	fragment = strings.ToLower(fragment)
	var list []string
	for _, c := range vocab {
		if strings.HasPrefix(strings.ToLower(c), fragment) {
			list = append(list, c)
			if len(list) == MaxSuggestions {
				break
			}
		}
	}
	return list
}

// ClassesFromSections collects the class names used in the markup of
// every section. Single-character names are skipped.
func ClassesFromSections(sections []section.Section) Vocabulary {
	var all []string
	for _, s := range sections {
		if s.Content == "" {
			continue
		}
		for _, m := range classAttr.FindAllStringSubmatch(s.Content, -1) {
			for _, cls := range strings.Fields(m[1]) {
				if len(cls) > 1 {
					all = append(all, cls)
				}
			}
		}
	}
	return NewVocabulary(all)
}

// NaturalLess orders strings case-insensitively, comparing digit runs by
// numeric value.
func NaturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
