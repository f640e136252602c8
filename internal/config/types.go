package config

import (
	"github.com/ziadkadry99/pageblocks/internal/llm"
	"github.com/ziadkadry99/pageblocks/internal/preview"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level pageblocks configuration, corresponding to .pageblocks.yml.
type Config struct {
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	DataDir  string         `yaml:"data_dir" koanf:"data_dir"`
	Preview  PreviewConfig  `yaml:"preview" koanf:"preview"`
	Autosave AutosaveConfig `yaml:"autosave" koanf:"autosave"`
	Apply    ApplyConfig    `yaml:"apply" koanf:"apply"`
	AI       AIConfig       `yaml:"ai" koanf:"ai"`
	Console  ConsoleConfig  `yaml:"console" koanf:"console"`
	Security SecurityConfig `yaml:"security" koanf:"security"`
	Keys     llm.Keys       `yaml:"keys" koanf:"keys"`
}

// ServerConfig holds the host service settings.
type ServerConfig struct {
	Port           int      `yaml:"port" koanf:"port"`
	PublicURL      string   `yaml:"public_url" koanf:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	AllowAll       bool     `yaml:"allow_all" koanf:"allow_all"`
}

// PreviewConfig controls preview debouncing and theme discovery.
type PreviewConfig struct {
	CSSDelayMS        int               `yaml:"css_delay_ms" koanf:"css_delay_ms"`
	StructuralDelayMS int               `yaml:"structural_delay_ms" koanf:"structural_delay_ms"`
	ThemeDirs         []string          `yaml:"theme_dirs" koanf:"theme_dirs"`
	ThemeBaseURLs     []string          `yaml:"theme_base_urls" koanf:"theme_base_urls"`
	ThemeStyleURLs    []string          `yaml:"theme_style_urls" koanf:"theme_style_urls"`
	WatchTheme        bool              `yaml:"watch_theme" koanf:"watch_theme"`
	Injection         preview.Injection `yaml:"injection" koanf:"injection"`
}

// AutosaveConfig controls local draft saving.
type AutosaveConfig struct {
	IntervalMS int `yaml:"interval_ms" koanf:"interval_ms"`
}

// ApplyConfig controls the apply guard.
type ApplyConfig struct {
	MinIntervalMS int `yaml:"min_interval_ms" koanf:"min_interval_ms"`
}

// AIConfig selects the default generation model.
type AIConfig struct {
	Provider      ProviderType `yaml:"provider" koanf:"provider"`
	Model         string       `yaml:"model" koanf:"model"`
	RatePerMinute int          `yaml:"rate_per_minute" koanf:"rate_per_minute"`
}

// ConsoleConfig controls the admin console.
type ConsoleConfig struct {
	Enabled   bool   `yaml:"enabled" koanf:"enabled"`
	TimeoutMS int    `yaml:"timeout_ms" koanf:"timeout_ms"`
	Shell     string `yaml:"shell" koanf:"shell"`
	Root      string `yaml:"root" koanf:"root"`
}

// SecurityConfig holds request signing and template execution settings.
type SecurityConfig struct {
	SigningSecret     string `yaml:"signing_secret" koanf:"signing_secret"`
	AllowTemplateExec bool   `yaml:"allow_template_exec" koanf:"allow_template_exec"`
}
