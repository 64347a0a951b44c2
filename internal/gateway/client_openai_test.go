package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylab/internal/experiment"
)

func completionBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":    "cmpl-1",
		"model": "gpt-4.1",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

func TestOpenAICompleteSuccess(t *testing.T) {
	var gotAuth string
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(completionBody("  generated text  "))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	resp, err := c.Complete(context.Background(), Request{
		Model:  "gpt-4.1",
		System: "sys",
		User:   "user",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated text", resp.Content)
	assert.Equal(t, 30, resp.TokensUsed)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, defaultMaxTokens, gotReq.MaxTokens)
}

func TestOpenAICompleteRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4.1", User: "u"})
	require.Error(t, err)
	assert.True(t, experiment.IsTransient(err))
}

func TestOpenAICompleteServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4.1", User: "u"})
	require.Error(t, err)
	assert.True(t, experiment.IsTransient(err))
}

func TestOpenAICompleteAuthFailureIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", APIKey: "sk-bad", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4.1", User: "u"})
	require.Error(t, err)
	assert.False(t, experiment.IsTransient(err))
	var pe *experiment.PermanentError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "401")
}

func TestOpenAICompleteMissingKeyIsPermanent(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4.1", User: "u"})
	var pe *experiment.PermanentError
	require.True(t, errors.As(err, &pe))
	assert.Zero(t, atomic.LoadInt64(&calls), "no request without a key")
}

func TestOpenAICompleteConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed on purpose

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4.1", User: "u"})
	require.Error(t, err)
	assert.True(t, experiment.IsTransient(err))
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4.1", User: "u"})
	var pe *experiment.PermanentError
	require.True(t, errors.As(err, &pe))
}
