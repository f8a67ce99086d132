package caption

import (
	"fmt"

	"shoprag/config"
	"shoprag/internal/port"
)

// New creates the captioner named by cfg.Provider.
func New(cfg config.CaptionConfig) (port.Captioner, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAICaptioner(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, cfg.Timeout)
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return NewOpenAICompatibleCaptioner("ollama", cfg.Model, baseURL, cfg.Timeout), nil
	case "static", "":
		return NewStaticCaptioner(cfg.Fallback), nil
	default:
		return nil, fmt.Errorf("unknown caption provider: %s", cfg.Provider)
	}
}
