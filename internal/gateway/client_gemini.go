package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"paylab/internal/experiment"
	"paylab/internal/logging"
)

// GeminiClient implements Client on top of the Google genai SDK.
type GeminiClient struct {
	provider string
	client   *genai.Client
}

// NewGeminiClient creates a Gemini client. The SDK owns transport concerns;
// only the API key is required here.
func NewGeminiClient(ctx context.Context, provider, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{provider: provider, client: client}, nil
}

// Complete sends one generation request and classifies the outcome.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		// The SDK folds status codes into its error; rate limits and
		// server errors come back as genai.APIError.
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(c.provider, apiErr.Code, apiErr.Message)
		}
		return nil, transportError(c.provider, err)
	}
	latency := time.Since(start)

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, &experiment.PermanentError{Provider: c.provider, Reason: "no completion returned"}
	}

	resp := &Response{
		Content: text,
		Model:   req.Model,
		Latency: latency,
	}
	if result.UsageMetadata != nil {
		resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}
	if len(result.Candidates) > 0 {
		resp.FinishReason = string(result.Candidates[0].FinishReason)
	}
	logging.APIDebug("%s/%s responded in %v (%d tokens)", c.provider, req.Model, latency, resp.TokensUsed)
	return resp, nil
}
