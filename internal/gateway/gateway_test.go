package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylab/internal/experiment"
	"paylab/internal/prompt"
)

type cannedClient struct {
	content string
	err     error
}

func (c *cannedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &Response{
		Content:      c.content,
		Model:        req.Model,
		TokensUsed:   42,
		FinishReason: "stop",
		Latency:      5 * time.Millisecond,
	}, nil
}

func testItem(method experiment.Method) experiment.WorkItem {
	return experiment.WorkItem{Provider: "test", Model: "m1", Variant: "neutral", Method: method}
}

func testRendered() *prompt.Rendered {
	return &prompt.Rendered{System: "sys", User: "user", Variant: "neutral", Version: "1"}
}

func TestGenerateCodeGen(t *testing.T) {
	g := New(map[string]Client{"test": &cannedClient{content: fencedCalculator}})

	art, err := g.Generate(context.Background(), testItem(experiment.MethodCodeGen), testRendered(), 3)
	require.NoError(t, err)
	require.NotNil(t, art.Code)
	assert.Nil(t, art.Dataset)
	assert.Equal(t, "Compensation", art.Code.FuncName)
	assert.Equal(t, 42, art.Code.Meta.TokensUsed)
	assert.Equal(t, "neutral", art.Code.Meta.Variant)
	assert.False(t, art.Code.Meta.Timestamp.IsZero())
}

func TestGenerateDirectData(t *testing.T) {
	g := New(map[string]Client{"test": &cannedClient{content: datasetCSV(3, "")}})

	art, err := g.Generate(context.Background(), testItem(experiment.MethodDirectData), testRendered(), 3)
	require.NoError(t, err)
	require.NotNil(t, art.Dataset)
	assert.Nil(t, art.Code)
	assert.Len(t, art.Dataset.Rows, 3)
}

func TestGenerateParseFailureCarriesRawResponse(t *testing.T) {
	raw := "Sorry, I can only answer in prose."
	g := New(map[string]Client{"test": &cannedClient{content: raw}})

	_, err := g.Generate(context.Background(), testItem(experiment.MethodCodeGen), testRendered(), 3)
	var pe *experiment.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, raw, pe.Raw)
}

func TestGenerateUnknownProvider(t *testing.T) {
	g := New(map[string]Client{})
	_, err := g.Generate(context.Background(), testItem(experiment.MethodCodeGen), testRendered(), 3)
	var pe *experiment.PermanentError
	require.True(t, errors.As(err, &pe))
}

func TestGeneratePassesThroughClientErrors(t *testing.T) {
	clientErr := &experiment.TransientError{Provider: "test", Reason: "overloaded"}
	g := New(map[string]Client{"test": &cannedClient{err: clientErr}})

	_, err := g.Generate(context.Background(), testItem(experiment.MethodCodeGen), testRendered(), 3)
	assert.True(t, experiment.IsTransient(err))
}

func TestGenerateAppliesModelParams(t *testing.T) {
	var got Request
	client := clientFunc(func(ctx context.Context, req Request) (*Response, error) {
		got = req
		return &Response{Content: fencedCalculator}, nil
	})
	g := New(map[string]Client{"test": client})
	g.SetModelParams("m1", 1024, 0.3)

	_, err := g.Generate(context.Background(), testItem(experiment.MethodCodeGen), testRendered(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Equal(t, 0.3, got.Temperature)
}

type clientFunc func(ctx context.Context, req Request) (*Response, error)

func (f clientFunc) Complete(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }
