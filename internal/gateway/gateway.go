package gateway

import (
	"context"
	"errors"
	"time"

	"paylab/internal/experiment"
	"paylab/internal/logging"
	"paylab/internal/prompt"
)

// Gateway translates one work item plus its rendered prompt into a
// GeneratedArtifact, going through the per-provider client for the wire call
// and through structural extraction for the response.
type Gateway struct {
	clients map[string]Client
	models  map[string]modelParams
}

type modelParams struct {
	maxTokens   int
	temperature float64
}

// New assembles a Gateway over per-provider clients. modelCfg maps model IDs
// to request overrides; absent models use defaults.
func New(clients map[string]Client) *Gateway {
	return &Gateway{clients: clients, models: make(map[string]modelParams)}
}

// SetModelParams registers request overrides for one model ID.
func (g *Gateway) SetModelParams(modelID string, maxTokens int, temperature float64) {
	g.models[modelID] = modelParams{maxTokens: maxTokens, temperature: temperature}
}

// Generate performs the provider call for item and extracts the artifact its
// method requires. datasetRows is the input batch size, used to validate
// direct_data responses. The returned error is always one of the taxonomy
// types; the caller decides about retries.
func (g *Gateway) Generate(ctx context.Context, item experiment.WorkItem, rendered *prompt.Rendered, datasetRows int) (*experiment.Artifact, error) {
	client, ok := g.clients[item.Provider]
	if !ok {
		return nil, &experiment.PermanentError{Provider: item.Provider, Reason: "no client configured"}
	}

	params := g.models[item.Model]
	resp, err := client.Complete(ctx, Request{
		Provider:    item.Provider,
		Model:       item.Model,
		System:      rendered.System,
		User:        rendered.User,
		MaxTokens:   params.maxTokens,
		Temperature: params.temperature,
	})
	if err != nil {
		return nil, err
	}

	meta := experiment.GenerationMeta{
		Provider:      item.Provider,
		Model:         item.Model,
		Variant:       item.Variant,
		PromptVersion: rendered.Version,
		TokensUsed:    resp.TokensUsed,
		FinishReason:  resp.FinishReason,
		Latency:       resp.Latency,
		Timestamp:     time.Now().UTC(),
	}

	switch item.Method {
	case experiment.MethodCodeGen:
		match, err := ExtractCalculator(resp.Content)
		if err != nil {
			logging.GatewayWarn("%s: extraction failed: %v", item, err)
			return nil, withRaw(err, resp.Content)
		}
		logging.Gateway("%s: extracted %s (%d bytes)", item, match.FuncName, len(match.Source))
		return &experiment.Artifact{Code: &experiment.CodeArtifact{
			Source:         match.Source,
			FuncName:       match.FuncName,
			DeclaresPerson: match.DeclaresPerson,
			Meta:           meta,
		}}, nil

	case experiment.MethodDirectData:
		dataset, err := ExtractDataset(resp.Content, DefaultDatasetSpec(datasetRows))
		if err != nil {
			logging.GatewayWarn("%s: extraction failed: %v", item, err)
			return nil, withRaw(err, resp.Content)
		}
		dataset.Meta = meta
		logging.Gateway("%s: extracted dataset (%d rows)", item, len(dataset.Rows))
		return &experiment.Artifact{Dataset: dataset}, nil

	default:
		return nil, &experiment.ParseError{Reason: "unknown method " + string(item.Method)}
	}
}

// withRaw attaches the full response text to a parse failure so callers can
// persist what the model actually said.
func withRaw(err error, raw string) error {
	var pe *experiment.ParseError
	if errors.As(err, &pe) {
		pe.Raw = raw
	}
	return err
}
