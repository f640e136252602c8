// Package shell holds the builder layout state and the keyboard map.
package shell

import "strings"

// Panel names a toggleable area of the builder.
type Panel string

const (
	PanelCode    Panel = "code"
	PanelPreview Panel = "preview"
	PanelSidebar Panel = "sidebar"
)

// Pane is what the right editor pane shows.
type Pane string

const (
	PaneCSS      Pane = "css"
	PaneJS       Pane = "js"
	PaneTerminal Pane = "terminal"
)

// Viewport is a preview width preset.
type Viewport string

const (
	ViewportDesktop Viewport = "desktop"
	Viewport992     Viewport = "992"
	Viewport768     Viewport = "768"
	Viewport480     Viewport = "480"
	Viewport360     Viewport = "360"
)

// Viewports lists the presets in cycle order.
var Viewports = []Viewport{ViewportDesktop, Viewport992, Viewport768, Viewport480, Viewport360}

// Width returns the preview frame width in pixels, or 0 for full width.
func (v Viewport) Width() int {
	switch v {
	case Viewport992:
		return 992
	case Viewport768:
		return 768
	case Viewport480:
		return 480
	case Viewport360:
		return 360
	}
	return 0
}

// TemplateMode is the page template family used to style the preview.
type TemplateMode string

const (
	TemplateDefault        TemplateMode = "default"
	TemplateBuilder        TemplateMode = "builder"
	TemplatePremiumBuilder TemplateMode = "premium-builder"
)

// TemplateModeFor maps a host page template slug onto a template mode.
func TemplateModeFor(slug string) TemplateMode {
	slug = strings.ToLower(slug)
	switch {
	case slug == "" || slug == "default" || slug == "default-template" || slug == "default_template":
		return TemplateDefault
	case strings.Contains(slug, "premium-builder"):
		return TemplatePremiumBuilder
	case strings.Contains(slug, "builder"):
		return TemplateBuilder
	}
	return TemplateDefault
}

const (
	minBottomHeight = 240
	bottomReserve   = 210
)

// ClampBottomHeight bounds the editor split height for a window of the
// given height. A non-positive window height is treated as 900.
func ClampBottomHeight(value, windowHeight int) int {
	if windowHeight <= 0 {
		windowHeight = 900
	}
	maxBottom := max(minBottomHeight, windowHeight-bottomReserve)
	return min(maxBottom, max(minBottomHeight, value))
}

// Layout is the visible arrangement of the builder.
type Layout struct {
	ShowCode     bool         `json:"showCode"`
	ShowPreview  bool         `json:"showPreview"`
	ShowSidebar  bool         `json:"showSidebar"`
	RightPane    Pane         `json:"rightPane"`
	Viewport     Viewport     `json:"viewport"`
	BottomHeight int          `json:"bottomHeight"`
	Template     TemplateMode `json:"template"`
	AIPromptOpen bool         `json:"aiPromptOpen"`

	consoleEnabled bool
}

// NewLayout returns the initial layout. The terminal pane is only
// reachable when consoleEnabled is set.
func NewLayout(templateSlug string, consoleEnabled bool) *Layout {
	return &Layout{
		ShowCode:       true,
		ShowPreview:    true,
		ShowSidebar:    true,
		RightPane:      PaneCSS,
		Viewport:       ViewportDesktop,
		BottomHeight:   minBottomHeight,
		Template:       TemplateModeFor(templateSlug),
		consoleEnabled: consoleEnabled,
	}
}

// ConsoleEnabled reports whether the terminal pane exists.
func (l *Layout) ConsoleEnabled() bool { return l.consoleEnabled }

// Toggle flips the visibility of p.
func (l *Layout) Toggle(p Panel) {
	switch p {
	case PanelCode:
		l.ShowCode = !l.ShowCode
	case PanelPreview:
		l.ShowPreview = !l.ShowPreview
	case PanelSidebar:
		l.ShowSidebar = !l.ShowSidebar
	}
}

func (l *Layout) panes() []Pane {
	if l.consoleEnabled {
		return []Pane{PaneCSS, PaneJS, PaneTerminal}
	}
	return []Pane{PaneCSS, PaneJS}
}

// SetPane selects the right pane. Unknown or unavailable panes select
// css.
func (l *Layout) SetPane(p Pane) {
	for _, valid := range l.panes() {
		if p == valid {
			l.RightPane = p
			return
		}
	}
	l.RightPane = PaneCSS
}

// NextPane returns the pane that SwapPane would select.
func (l *Layout) NextPane() Pane {
	panes := l.panes()
	for i, p := range panes {
		if p == l.RightPane {
			return panes[(i+1)%len(panes)]
		}
	}
	return panes[0]
}

// SwapPane advances the right pane.
func (l *Layout) SwapPane() Pane {
	l.RightPane = l.NextPane()
	return l.RightPane
}

// CycleViewport advances to the next width preset.
func (l *Layout) CycleViewport() Viewport {
	next := 0
	for i, v := range Viewports {
		if v == l.Viewport {
			next = (i + 1) % len(Viewports)
			break
		}
	}
	l.Viewport = Viewports[next]
	return l.Viewport
}

// SetViewport selects a preset. Unknown values select desktop.
func (l *Layout) SetViewport(v Viewport) {
	for _, known := range Viewports {
		if v == known {
			l.Viewport = v
			return
		}
	}
	l.Viewport = ViewportDesktop
}

// Resize sets the clamped split height.
func (l *Layout) Resize(value, windowHeight int) int {
	l.BottomHeight = ClampBottomHeight(value, windowHeight)
	return l.BottomHeight
}
