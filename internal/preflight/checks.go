package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"slidesmith/internal/config"
	"slidesmith/internal/llm"
)

const providerCheckTimeout = 30 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckProviderConfig verifies a provider has credentials and a model.
func CheckProviderConfig(name string, pc config.Provider, isDefault bool) Result {
	label := "Provider " + name
	if isDefault {
		label += " (default)"
	}
	switch {
	case strings.TrimSpace(pc.APIKey) == "":
		return Result{Name: label, Detail: "API key missing"}
	case strings.TrimSpace(pc.Model) == "":
		return Result{Name: label, Detail: "model not set"}
	}
	return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s %s", pc.Kind, pc.Model)}
}

// CheckProvider verifies that a provider answers a minimal prompt. It uses a
// 30-second timeout and a single attempt.
func CheckProvider(ctx context.Context, p llm.Provider) Result {
	name := "Provider " + p.Name() + " reachability"
	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()

	started := time.Now()
	_, err := p.Generate(checkCtx, llm.Request{Prompt: "Reply with the single word: ok", MaxTokens: 8})
	if err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", time.Since(started).Round(time.Millisecond))}
}

// CheckProviders pings every registered provider in name order.
func CheckProviders(ctx context.Context, registry *llm.Registry) []Result {
	var results []Result
	for _, name := range registry.Names() {
		p, err := registry.Get(name)
		if err != nil {
			results = append(results, Result{Name: "Provider " + name + " reachability", Detail: err.Error()})
			continue
		}
		results = append(results, CheckProvider(ctx, p))
	}
	return results
}

// summarizeLLMError produces a human-readable summary for provider check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	if errors.Is(err, llm.ErrMissingAPIKey) {
		return "API key missing"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403:
			return fmt.Sprintf("auth failed (%d)", statusErr.StatusCode)
		}
	}
	return err.Error()
}
