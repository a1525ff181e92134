package llm_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidesmith/internal/llm"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Generate(context.Context, llm.Request) (llm.Result, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return llm.Result{}, s.errs[idx]
	}
	return llm.Result{Text: "done", Cost: 0.5}, nil
}

func TestWithRetryRetriesTransientFailures(t *testing.T) {
	inner := &scriptedProvider{errs: []error{
		&llm.HTTPStatusError{StatusCode: http.StatusServiceUnavailable},
		&llm.EmptyContentError{Provider: "scripted"},
	}}
	var slept []time.Duration
	p := llm.WithRetry(inner, 3, 10*time.Millisecond, 15*time.Millisecond, llm.WithSleeper(func(d time.Duration) {
		slept = append(slept, d)
	}))

	res, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, "done", res.Text)
	require.Equal(t, 3, inner.calls)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, slept)
	require.Equal(t, "scripted", p.Name())
}

func TestWithRetryHonoursRetryAfter(t *testing.T) {
	inner := &scriptedProvider{errs: []error{&llm.HTTPStatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 5 * time.Second}}}
	var slept []time.Duration
	p := llm.WithRetry(inner, 2, time.Millisecond, 2*time.Second, llm.WithSleeper(func(d time.Duration) {
		slept = append(slept, d)
	}))
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Second}, slept, "retry-after is capped")
}

func TestWithRetryStopsOnClientErrors(t *testing.T) {
	inner := &scriptedProvider{errs: []error{&llm.HTTPStatusError{StatusCode: http.StatusUnauthorized}}}
	p := llm.WithRetry(inner, 3, time.Millisecond, time.Millisecond, llm.WithSleeper(func(time.Duration) {}))
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	var statusErr *llm.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 1, inner.calls)
}

func TestWithRetryGivesUpAfterAttempts(t *testing.T) {
	boom := &llm.HTTPStatusError{StatusCode: http.StatusBadGateway}
	inner := &scriptedProvider{errs: []error{boom, boom, boom, boom}}
	p := llm.WithRetry(inner, 3, time.Millisecond, time.Millisecond, llm.WithSleeper(func(time.Duration) {}))
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed after 3 attempts")
	require.Equal(t, 3, inner.calls)
}

func TestWithRetryDoesNotRetryCancellation(t *testing.T) {
	inner := &scriptedProvider{errs: []error{context.Canceled}}
	p := llm.WithRetry(inner, 3, time.Millisecond, time.Millisecond)
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 1, inner.calls)
}
