package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGoogle    = "google"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxTokens   = 4096
)

// ErrMissingAPIKey is returned when a provider has no credentials.
var ErrMissingAPIKey = errors.New("api key required")

// Provider issues one generation attempt against an LLM endpoint.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// Request describes a single prompt.
type Request struct {
	System      string
	Prompt      string
	JSON        bool
	MaxTokens   int
	Temperature *float64
	// Model overrides the provider's configured model when set.
	Model string
	// OnPartial receives the accumulated text so far while streaming. When nil
	// the provider uses a plain request/response call.
	OnPartial func(text string)
}

// Result is the outcome of a successful generation.
type Result struct {
	Text  string
	Model string
	Cost  float64
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// EmptyContentError reports a response that carried no usable text.
type EmptyContentError struct {
	Provider     string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Provider,
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}

func validateRequest(name string, req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%s: prompt required", name)
	}
	return nil
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func pickModel(req Request, fallback string) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
