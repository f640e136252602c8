package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/pageblocks/internal/llm"
)

// APIKeyCredentials stores an API key for a provider.
type APIKeyCredentials struct {
	APIKey string `json:"api_key,omitempty"`
}

// Credentials holds locally stored secrets.
type Credentials struct {
	Anthropic *APIKeyCredentials `json:"anthropic,omitempty"`
	OpenAI    *APIKeyCredentials `json:"openai,omitempty"`
	Google    *APIKeyCredentials `json:"google,omitempty"`
	// SigningSecret signs builder request tokens when the config does
	// not set one.
	SigningSecret string `json:"signing_secret,omitempty"`
}

// CredentialPath returns the path to the credentials file (~/.pageblocks/credentials.json).
func CredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".pageblocks", "credentials.json"), nil
}

// Load reads credentials from path.
// Returns empty credentials if the file doesn't exist.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &creds, nil
}

// Save writes credentials to path with restricted permissions.
func Save(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Keys returns the stored provider keys.
func (c *Credentials) Keys() llm.Keys {
	var k llm.Keys
	if c.Anthropic != nil {
		k.Anthropic = c.Anthropic.APIKey
	}
	if c.OpenAI != nil {
		k.OpenAI = c.OpenAI.APIKey
	}
	if c.Google != nil {
		k.Google = c.Google.APIKey
	}
	return k
}

// EnsureSecret returns the stored signing secret, generating and
// persisting one on first use.
func EnsureSecret(path string) (string, error) {
	creds, err := Load(path)
	if err != nil {
		return "", err
	}
	if creds.SigningSecret != "" {
		return creds.SigningSecret, nil
	}
	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	creds.SigningSecret = secret
	if err := Save(path, creds); err != nil {
		return "", err
	}
	return secret, nil
}

// ResolveKeys merges keys in priority order: explicit configuration,
// environment, then stored credentials.
func ResolveKeys(configured llm.Keys, path string) llm.Keys {
	keys := configured.Merge(llm.KeysFromEnv())
	if creds, err := Load(path); err == nil {
		keys = keys.Merge(creds.Keys())
	}
	return keys
}
