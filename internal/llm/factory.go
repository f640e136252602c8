package llm

import (
	"errors"
	"fmt"
	"os"
)

// DefaultOllamaHost is used when no Ollama host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// ErrMissingKey is returned when a provider has no credential.
var ErrMissingKey = errors.New("API key is not set")

// Keys holds the credentials of every supported provider.
type Keys struct {
	OpenAI     string `koanf:"openai_key" yaml:"openai_key"`
	Anthropic  string `koanf:"anthropic_key" yaml:"anthropic_key"`
	Google     string `koanf:"google_key" yaml:"google_key"`
	OllamaHost string `koanf:"ollama_host" yaml:"ollama_host"`
}

// KeysFromEnv reads provider credentials from the standard environment
// variables.
func KeysFromEnv() Keys {
	return Keys{
		OpenAI:     os.Getenv("OPENAI_API_KEY"),
		Anthropic:  os.Getenv("ANTHROPIC_API_KEY"),
		Google:     os.Getenv("GOOGLE_API_KEY"),
		OllamaHost: os.Getenv("OLLAMA_HOST"),
	}
}

// Merge fills empty fields of k from other.
func (k Keys) Merge(other Keys) Keys {
	if k.OpenAI == "" {
		k.OpenAI = other.OpenAI
	}
	if k.Anthropic == "" {
		k.Anthropic = other.Anthropic
	}
	if k.Google == "" {
		k.Google = other.Google
	}
	if k.OllamaHost == "" {
		k.OllamaHost = other.OllamaHost
	}
	return k
}

// Has reports whether credentials for providerType are present. Ollama
// needs none.
func (k Keys) Has(providerType string) bool {
	switch providerType {
	case "anthropic":
		return k.Anthropic != ""
	case "openai":
		return k.OpenAI != ""
	case "google":
		return k.Google != ""
	case "ollama":
		return true
	}
	return false
}

// New builds the provider for providerType using keys. Ollama falls
// back to the local default host.
func New(providerType, model string, keys Keys) (Provider, error) {
	switch providerType {
	case "anthropic":
		if keys.Anthropic == "" {
			return nil, fmt.Errorf("%w: anthropic (ANTHROPIC_API_KEY)", ErrMissingKey)
		}
		return NewAnthropicProvider(keys.Anthropic, model), nil
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("%w: openai (OPENAI_API_KEY)", ErrMissingKey)
		}
		return NewOpenAIProvider(keys.OpenAI, model), nil
	case "google":
		if keys.Google == "" {
			return nil, fmt.Errorf("%w: google (GOOGLE_API_KEY)", ErrMissingKey)
		}
		return NewGoogleProvider(keys.Google, model), nil
	case "ollama":
		host := keys.OllamaHost
		if host == "" {
			host = DefaultOllamaHost
		}
		return NewOllamaProvider(host, model), nil
	}
	return nil, fmt.Errorf("unsupported provider type: %s", providerType)
}
