package assist

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ziadkadry99/pageblocks/internal/llm"
)

// ModelInfo describes one selectable generation model.
type ModelInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// Catalogue lists the models offered by the builder, grouped by provider.
var Catalogue = []ModelInfo{
	{ID: "gpt-5.2", Label: "GPT-5.2", Provider: "openai"},
	{ID: "gpt-5-mini", Label: "GPT-5 Mini", Provider: "openai"},
	{ID: "gpt-4o-mini", Label: "GPT-4o Mini", Provider: "openai"},
	{ID: "claude-sonnet-4-6", Label: "Claude Sonnet 4.6", Provider: "anthropic"},
	{ID: "claude-opus-4-6", Label: "Claude Opus 4.6", Provider: "anthropic"},
	{ID: "claude-haiku-4-5-20251001", Label: "Claude Haiku 4.5", Provider: "anthropic"},
	{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash", Provider: "google"},
	{ID: "gemini-1.5-pro", Label: "Gemini 1.5 Pro", Provider: "google"},
	{ID: "llama3.1", Label: "Llama 3.1 (Ollama)", Provider: "ollama"},
}

var (
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrUnknownModel = errors.New("unknown model")
	ErrNoCredential = errors.New("no API key configured for the model provider")
)

// ProviderFactory builds a provider for a model.
type ProviderFactory func(providerType, model string) (llm.Provider, error)

// Service answers generation requests with the configured providers.
type Service struct {
	keys         llm.Keys
	defaultModel string
	rpm          int
	factory      ProviderFactory

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	// MaxTokens bounds each completion.
	MaxTokens int
}

// NewService creates a Service. rpm limits requests per provider per
// minute; zero disables the limit.
func NewService(keys llm.Keys, defaultModel string, rpm int) *Service {
	s := &Service{keys: keys, defaultModel: defaultModel, rpm: rpm, MaxTokens: 8192, limiters: make(map[string]*rate.Limiter)}
	s.factory = func(providerType, model string) (llm.Provider, error) {
		return llm.New(providerType, model, s.keys)
	}
	return s
}

// WithFactory replaces the provider factory.
func (s *Service) WithFactory(f ProviderFactory) *Service {
	s.factory = f
	return s
}

// Models returns the catalogue entries whose provider has credentials.
// Ollama entries are listed only when a host is configured.
func (s *Service) Models() []ModelInfo {
	var out []ModelInfo
	for _, m := range Catalogue {
		if m.Provider == "ollama" && s.keys.OllamaHost == "" {
			continue
		}
		if s.keys.Has(m.Provider) {
			out = append(out, m)
		}
	}
	return out
}

// DefaultModel returns the configured default model id.
func (s *Service) DefaultModel() string { return s.defaultModel }

// Lookup finds a catalogue entry by id.
func Lookup(id string) (ModelInfo, bool) {
	for _, m := range Catalogue {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Result is a generation answer plus usage for the audit trail.
type Result struct {
	Code         string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Generate runs one completion for req.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	id := req.Model
	if id == "" {
		id = s.defaultModel
	}
	info, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	if !s.keys.Has(info.Provider) {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, info.Provider)
	}
	provider, err := s.factory(info.Provider, info.ID)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", info.Provider, err)
	}
	provider = llm.Limit(provider, s.limiter(info.Provider))

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model: info.ID,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt(req)},
			{Role: llm.RoleUser, Content: UserPrompt(req)},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", provider.Name(), err)
	}
	return &Result{
		Code:         StripFences(resp.Content),
		Model:        info.ID,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         llm.EstimateCost(info.ID, resp.InputTokens, resp.OutputTokens),
	}, nil
}

// limiter returns the shared limiter of a provider, nil when unlimited.
func (s *Service) limiter(provider string) *rate.Limiter {
	if s.rpm <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[provider]
	if !ok {
		l = llm.PerMinute(s.rpm)
		s.limiters[provider] = l
	}
	return l
}

// SystemPrompt describes the output contract for req.
func SystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You write code for one section of a web page. Answer with code only, no explanations and no markdown fences.\n")
	switch req.Tab {
	case "css":
		b.WriteString("Answer with plain CSS for the section.\n")
	case "js":
		b.WriteString("Answer with plain JavaScript for the section, without <script> tags.\n")
	default:
		b.WriteString("Answer with HTML markup for the section body. Do not include <html>, <head> or <body>.\n")
		b.WriteString(`Put any CSS the markup needs in one <style id="ai-generated"> element and any JavaScript in one <script id="ai-generated"> element; they are moved to the section's CSS and JS fields.` + "\n")
	}
	if req.Selection != "" {
		b.WriteString("The user selected part of the existing code. Answer only with the replacement for the selected part.\n")
	}
	return b.String()
}

// UserPrompt assembles the request context and the instruction.
func UserPrompt(req Request) string {
	var b strings.Builder
	if req.PageURL != "" {
		fmt.Fprintf(&b, "Page: %s\n\n", req.PageURL)
	}
	if req.ContextHTML != "" && req.Tab != "html" {
		fmt.Fprintf(&b, "Section HTML:\n%s\n\n", req.ContextHTML)
	}
	if req.ContextCSS != "" {
		fmt.Fprintf(&b, "Section CSS:\n%s\n\n", req.ContextCSS)
	}
	if req.ExistingCode != "" {
		fmt.Fprintf(&b, "Current %s:\n%s\n\n", strings.ToUpper(req.Tab), req.ExistingCode)
	}
	if req.Selection != "" {
		fmt.Fprintf(&b, "Selected code:\n%s\n\n", req.Selection)
	}
	fmt.Fprintf(&b, "Instruction: %s\n", strings.TrimSpace(req.Prompt))
	return b.String()
}

var fence = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)\r?\n?```$")

// StripFences removes one markdown code fence wrapping the whole answer.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}
