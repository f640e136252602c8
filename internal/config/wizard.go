package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/ziadkadry99/pageblocks/internal/auth"
)

// themeMarkers are files whose presence suggests a theme directory.
var themeMarkers = []string{"style.css", "css", "assets/css"}

// detectThemeDir checks the common theme locations below the current
// directory for a stylesheet.
func detectThemeDir() string {
	for _, dir := range []string{"theme", "themes/default", "."} {
		for _, marker := range themeMarkers {
			if _, err := os.Stat(dir + "/" + marker); err == nil {
				return dir
			}
		}
	}
	return "theme"
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to pageblocks! Let's configure the builder host.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Port.
	portPrompt := promptui.Prompt{
		Label:   "Port for the host service",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 2. Allowed builder origins.
	originsPrompt := promptui.Prompt{
		Label:   "Origins allowed to embed the builder (comma-separated, blank for none)",
		Default: "",
	}
	originsStr, err := originsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("origins: %w", err)
	}
	cfg.Server.AllowedOrigins = splitAndTrim(originsStr)

	// 3. Theme directory.
	themePrompt := promptui.Prompt{
		Label:   "Theme directory for class suggestions",
		Default: detectThemeDir(),
	}
	themeDir, err := themePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("theme dir: %w", err)
	}
	cfg.Preview.ThemeDirs = []string{themeDir}

	// 4. AI provider.
	providerPrompt := promptui.Select{
		Label: "Select the AI provider for generation",
		Items: []string{"anthropic", "openai", "google", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.AI.Provider = ProviderType(providerStr)
	cfg.AI.Model = DefaultModels[cfg.AI.Provider]

	// 5. Console.
	consolePrompt := promptui.Select{
		Label: "Enable the admin console (runs shell commands on this host)",
		Items: []string{"no", "yes"},
	}
	consoleIdx, _, err := consolePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("console selection: %w", err)
	}
	cfg.Console.Enabled = consoleIdx == 1

	secret, err := auth.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating signing secret: %w", err)
	}
	cfg.Security.SigningSecret = secret

	// Check for API key.
	if envVar := APIKeyEnvVar(cfg.AI.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before generating sections.\n", envVar)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
