package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/config"
)

// NewClientFromConfig builds the provider named in the configuration.
// Supported providers: "openai" (and any OpenAI-compatible endpoint via
// base_url) and "anthropic".
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
