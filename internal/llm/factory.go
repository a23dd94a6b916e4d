package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/promptarena/promptarena/internal/config"
)

// NewRegistryFromConfig builds the provider registry from the loaded
// config. Providers with no credentials are still registered; auth
// failures surface per-call so that offline commands keep working.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.LLM.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "":
			continue
		case "anthropic", "claude":
			p := NewAnthropicProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model)
			r.Register(p)
			r.RegisterAlias("claude", p)
		case "openai":
			r.Register(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	r.SetDefault(cfg.LLM.DefaultProvider)
	return r, nil
}
