package preview

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Assets is the host page styling replicated inside the preview. It is
// captured once when a session starts.
type Assets struct {
	StyleURLs    []string `json:"styleUrls"`
	InlineStyles []string `json:"inlineStyles"`
	ScriptURLs   []string `json:"scriptUrls"`
}

// InlineStyle is a <style> element found on the host page.
type InlineStyle struct {
	ID   string
	Text string
}

// HostPage lists the asset references of the page hosting the builder.
type HostPage struct {
	BaseURL      string
	StyleLinks   []string
	InlineStyles []InlineStyle
	ScriptSrcs   []string
}

// AssetFilter selects which host assets belong to the theme.
type AssetFilter struct {
	ThemeBaseURLs  []string `koanf:"theme_base_urls"`
	ThemeStyleURLs []string `koanf:"theme_style_urls"`
	ThemePathHints []string `koanf:"theme_path_hints"`
	VendorScripts  []string `koanf:"vendor_scripts"`
}

// DefaultAssetFilter matches theme paths and the bundled jQuery.
func DefaultAssetFilter() AssetFilter {
	return AssetFilter{
		ThemePathHints: []string{"/wp-content/themes/"},
		VendorScripts:  []string{"/wp-includes/js/jquery/"},
	}
}

// CollectAssets filters the host page down to theme stylesheets, theme
// inline styles and theme scripts. URLs are resolved against the page
// base URL and de-duplicated.
func CollectAssets(page HostPage, filter AssetFilter) Assets {
	base, _ := url.Parse(page.BaseURL)
	resolve := func(raw string) string { return resolveURL(base, raw) }

	var bases []string
	for _, u := range filter.ThemeBaseURLs {
		if r := resolve(u); r != "" {
			bases = append(bases, r)
		}
	}

	var assets Assets
	for _, u := range filter.ThemeStyleURLs {
		assets.StyleURLs = pushUnique(assets.StyleURLs, resolve(u))
	}
	for _, href := range page.StyleLinks {
		href = resolve(href)
		if href != "" && filter.isTheme(href, bases) {
			assets.StyleURLs = pushUnique(assets.StyleURLs, href)
		}
	}
	for _, st := range page.InlineStyles {
		id := strings.ToLower(st.ID)
		if strings.TrimSpace(st.Text) == "" {
			continue
		}
		if strings.Contains(id, "global-styles") || strings.Contains(id, "classic-theme-styles") || strings.HasPrefix(id, "theme") {
			assets.InlineStyles = append(assets.InlineStyles, st.Text)
		}
	}
	for _, src := range page.ScriptSrcs {
		src = resolve(src)
		if src == "" {
			continue
		}
		if filter.isTheme(src, bases) || containsAny(src, filter.VendorScripts) {
			assets.ScriptURLs = pushUnique(assets.ScriptURLs, src)
		}
	}
	return assets
}

func (f AssetFilter) isTheme(u string, bases []string) bool {
	for _, b := range bases {
		if strings.HasPrefix(u, b) {
			return true
		}
	}
	return containsAny(u, f.ThemePathHints)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func pushUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// ParseHostPage extracts stylesheet links, inline styles and script
// sources from a host page document.
func ParseHostPage(r io.Reader, baseURL string) (HostPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return HostPage{}, fmt.Errorf("failed to parse host page: %w", err)
	}
	page := HostPage{BaseURL: baseURL}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Link:
				if href := attr(n, "href"); href != "" && hasToken(attr(n, "rel"), "stylesheet") {
					page.StyleLinks = append(page.StyleLinks, href)
				}
			case atom.Style:
				var text strings.Builder
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						text.WriteString(c.Data)
					}
				}
				page.InlineStyles = append(page.InlineStyles, InlineStyle{ID: attr(n, "id"), Text: text.String()})
			case atom.Script:
				if src := attr(n, "src"); src != "" {
					page.ScriptSrcs = append(page.ScriptSrcs, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(list)) {
		if f == token {
			return true
		}
	}
	return false
}
