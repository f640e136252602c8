package config

import (
	"time"

	"github.com/ziadkadry99/pageblocks/internal/preview"
)

// DefaultPath is the configuration file read from the working directory.
const DefaultPath = ".pageblocks.yml"

// DefaultModels maps each provider to the model used when none is set.
var DefaultModels = map[ProviderType]string{
	ProviderAnthropic: "claude-sonnet-4-6",
	ProviderOpenAI:    "gpt-5-mini",
	ProviderGoogle:    "gemini-2.0-flash",
	ProviderOllama:    "llama3.1",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		DataDir: ".pageblocks",
		Preview: PreviewConfig{
			CSSDelayMS: 1000,
			ThemeDirs:  []string{"theme"},
		},
		Autosave: AutosaveConfig{IntervalMS: 1000},
		Apply:    ApplyConfig{MinIntervalMS: 2000},
		AI: AIConfig{
			Provider:      ProviderAnthropic,
			Model:         DefaultModels[ProviderAnthropic],
			RatePerMinute: 20,
		},
		Console: ConsoleConfig{
			TimeoutMS: 30000,
			Shell:     "/bin/sh",
		},
	}
}

// Delays returns the preview debounce delays.
func (c *Config) Delays() preview.Delays {
	return preview.Delays{
		CSS:        ms(c.Preview.CSSDelayMS),
		Structural: ms(c.Preview.StructuralDelayMS),
	}
}

// AutosaveInterval returns the quiet period before a draft is written.
func (c *Config) AutosaveInterval() time.Duration { return ms(c.Autosave.IntervalMS) }

// ApplyMinInterval returns the minimum gap between apply activations.
func (c *Config) ApplyMinInterval() time.Duration { return ms(c.Apply.MinIntervalMS) }

// ConsoleTimeout returns the per-command console timeout.
func (c *Config) ConsoleTimeout() time.Duration { return ms(c.Console.TimeoutMS) }

// AssetFilter returns the theme asset filter with configured additions.
func (c *Config) AssetFilter() preview.AssetFilter {
	f := preview.DefaultAssetFilter()
	f.ThemeBaseURLs = append(f.ThemeBaseURLs, c.Preview.ThemeBaseURLs...)
	f.ThemeStyleURLs = append(f.ThemeStyleURLs, c.Preview.ThemeStyleURLs...)
	return f
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
