package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// envPrefix marks environment overrides. Nested keys use a double
// underscore: PAGEBLOCKS_SERVER__PORT sets server.port.
const envPrefix = "PAGEBLOCKS_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PAGEBLOCKS_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: PAGEBLOCKS_AI__MODEL -> ai.model, etc.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderGoogle:    true,
	ProviderOllama:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.AI.Provider != "" && !validProviders[c.AI.Provider] {
		return fmt.Errorf("invalid ai.provider %q: must be one of anthropic, openai, google, ollama", c.AI.Provider)
	}
	if c.AI.RatePerMinute < 0 {
		return fmt.Errorf("ai.rate_per_minute must be non-negative")
	}

	for name, v := range map[string]int{
		"preview.css_delay_ms":        c.Preview.CSSDelayMS,
		"preview.structural_delay_ms": c.Preview.StructuralDelayMS,
		"autosave.interval_ms":        c.Autosave.IntervalMS,
		"apply.min_interval_ms":       c.Apply.MinIntervalMS,
		"console.timeout_ms":          c.Console.TimeoutMS,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}

	if c.Console.Enabled && c.Security.SigningSecret == "" {
		return fmt.Errorf("console.enabled requires security.signing_secret")
	}

	return nil
}

// DBPath returns the SQLite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "pageblocks.db")
}

// DefaultModel returns the configured model, or the provider default.
func (c *Config) DefaultModel() string {
	if c.AI.Model != "" {
		return c.AI.Model
	}
	return DefaultModels[c.AI.Provider]
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
