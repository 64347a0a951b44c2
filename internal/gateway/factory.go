package gateway

import (
	"context"
	"fmt"

	"paylab/internal/config"
)

// NewClient builds the Client for a configured provider. The API key comes
// from the provider's configured environment variable; a missing key is not
// an error here because the per-call path reports it as a permanent failure,
// letting the rest of the plan proceed.
func NewClient(ctx context.Context, p config.ProviderConfig) (Client, error) {
	switch p.Kind {
	case config.KindOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			Provider: p.Name,
			APIKey:   p.APIKey(),
			BaseURL:  p.BaseURL,
			Timeout:  p.CallTimeout(),
		}), nil

	case config.KindXAI:
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "https://api.x.ai/v1"
		}
		return NewOpenAIClient(OpenAIConfig{
			Provider: p.Name,
			APIKey:   p.APIKey(),
			BaseURL:  baseURL,
			Timeout:  p.CallTimeout(),
		}), nil

	case config.KindAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			Provider: p.Name,
			APIKey:   p.APIKey(),
			BaseURL:  p.BaseURL,
			Timeout:  p.CallTimeout(),
		}), nil

	case config.KindGemini:
		return NewGeminiClient(ctx, p.Name, p.APIKey())

	default:
		return nil, fmt.Errorf("unknown provider kind: %s", p.Kind)
	}
}
