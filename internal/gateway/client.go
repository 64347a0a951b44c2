// Package gateway turns a rendered prompt into a provider call and the
// provider's response into a generated artifact. It performs structural
// extraction only; generated content is never executed or semantically
// validated here.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"paylab/internal/experiment"
)

// Request is one provider-agnostic completion request.
type Request struct {
	Provider    string
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Response is the provider-agnostic completion result. Clients translate
// provider-specific payloads into this shape so extraction never sees a
// provider's wire format.
type Response struct {
	Content      string
	Model        string
	TokensUsed   int
	FinishReason string
	Latency      time.Duration
}

// Client is implemented once per provider wire protocol.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

const defaultMaxTokens = 4096

// classifyStatus maps an HTTP status to the failure taxonomy. Rate limits
// and server-side errors are retryable; everything else about the request
// itself is not.
func classifyStatus(provider string, status int, body string) error {
	reason := fmt.Sprintf("status %d: %s", status, truncate(body, 200))
	if status == http.StatusTooManyRequests || status >= 500 {
		return &experiment.TransientError{Provider: provider, Reason: reason}
	}
	return &experiment.PermanentError{Provider: provider, Reason: reason}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// transportError wraps connection-level failures as transient: resets and
// timeouts are exactly what bounded retries exist for.
func transportError(provider string, err error) error {
	return &experiment.TransientError{Provider: provider, Reason: "request failed", Err: err}
}
