package experiment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkItemKeySanitizesModelIDs(t *testing.T) {
	item := WorkItem{Provider: "openai", Model: "openai/gpt-4.1", Variant: "neutral", Method: MethodCodeGen}
	assert.Equal(t, "openai_openai_gpt-4_1_neutral_code_gen", item.Key())

	spaced := WorkItem{Provider: "x ai", Model: "grok:beta", Variant: "fair", Method: MethodDirectData}
	assert.NotContains(t, spaced.Key(), " ")
	assert.NotContains(t, spaced.Key(), ":")
}

func TestWorkItemKeyStability(t *testing.T) {
	item := WorkItem{Provider: "p", Model: "m", Variant: "v", Method: MethodCodeGen}
	assert.Equal(t, item.Key(), item.Key())
}

func TestMethodValid(t *testing.T) {
	assert.True(t, MethodCodeGen.Valid())
	assert.True(t, MethodDirectData.Valid())
	assert.False(t, Method("telepathy").Valid())
}

func TestFailureStatus(t *testing.T) {
	transient := &TransientError{Provider: "p", Reason: "busy"}
	tests := []struct {
		err  error
		want string
	}{
		{&ParseError{Reason: "no function"}, "parse_error"},
		{&ValidationError{Reason: "bad import"}, "validation_error"},
		{&RetriesExhaustedError{Provider: "p", Attempts: 4, Last: transient}, "retries_exhausted"},
		{transient, "transient_error"},
		{&PermanentError{Provider: "p", Reason: "auth"}, "permanent_error"},
		{errors.New("mystery"), "error"},
		{fmt.Errorf("wrapped: %w", &ParseError{Reason: "inner"}), "parse_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureStatus(tt.err), "%v", tt.err)
	}
}

func TestIsTransientUnwraps(t *testing.T) {
	inner := &TransientError{Provider: "p", Reason: "reset"}
	assert.True(t, IsTransient(fmt.Errorf("call failed: %w", inner)))
	assert.False(t, IsTransient(&PermanentError{Provider: "p", Reason: "auth"}))
	assert.False(t, IsTransient(nil))
}
