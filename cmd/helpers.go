package cmd

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/config"
	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/llm"
	"github.com/ziadkadry99/pageblocks/internal/render"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `pageblocks init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the SQLite database under the configured data dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// signingSecret prefers the configured secret and falls back to the one
// kept with the stored credentials.
func signingSecret(cfg *config.Config) (string, error) {
	if cfg.Security.SigningSecret != "" {
		return cfg.Security.SigningSecret, nil
	}
	path, err := auth.CredentialPath()
	if err != nil {
		return "", err
	}
	return auth.EnsureSecret(path)
}

func newSigner(cfg *config.Config) (*auth.Signer, error) {
	secret, err := signingSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolving signing secret: %w", err)
	}
	return auth.NewSigner(secret)
}

// resolveKeys merges configured, environment and stored provider keys.
func resolveKeys(cfg *config.Config) llm.Keys {
	path, err := auth.CredentialPath()
	if err != nil {
		return cfg.Keys.Merge(llm.KeysFromEnv())
	}
	return auth.ResolveKeys(cfg.Keys, path)
}

// offlineRenderer renders outside the server, where template execution
// follows the config switch without auditing.
func offlineRenderer(cfg *config.Config) *render.Renderer {
	if cfg.Security.AllowTemplateExec {
		return render.New(render.Allow)
	}
	return render.New(render.Deny)
}
