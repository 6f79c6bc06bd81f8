package asr

import (
	"fmt"
	"strings"
	"time"
)

// Config is the subset of admin-tunable ASR settings the factory needs to
// build an Adapter. It mirrors internal/config.AsrConfig.
type Config struct {
	ModelID          string
	OpenAIAPIKey     string
	AzureAPIKey      string
	AzureEndpoint    string
	AzureAPIVersion  string
	LocalEndpoint    string
	RequestTimeoutMs int
}

// NewAdapter resolves cfg.ModelID, formatted "<provider>/<model>" (e.g.
// "openai/whisper-1", "azure_openai/whisper", "local/whisper-large-v2"),
// into a concrete Adapter. A model id with no "/" defaults to the local
// provider, matching an on-prem whisper deployment with a bare model name.
func NewAdapter(cfg Config) (Adapter, error) {
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	provider, model := splitModelID(cfg.ModelID)

	switch provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not configured", ErrAuthFailed)
		}
		return NewCloudAdapter(cfg.OpenAIAPIKey, model, timeout), nil
	case "azure_openai", "azure":
		if cfg.AzureAPIKey == "" || cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("%w: azure openai requires an api key and endpoint", ErrAuthFailed)
		}
		return NewAzureAdapter(cfg.AzureAPIKey, cfg.AzureEndpoint, cfg.AzureAPIVersion, model, timeout), nil
	case "local", "whisper":
		if cfg.LocalEndpoint == "" {
			return nil, fmt.Errorf("%w: no local ASR endpoint configured", ErrAuthFailed)
		}
		return NewLocalAdapter(cfg.LocalEndpoint, timeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown ASR provider %q", ErrAuthFailed, provider)
	}
}

func splitModelID(modelID string) (provider, model string) {
	if idx := strings.Index(modelID, "/"); idx >= 0 {
		return modelID[:idx], modelID[idx+1:]
	}
	return "local", modelID
}
