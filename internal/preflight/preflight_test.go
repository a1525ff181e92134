package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidesmith/internal/config"
	"slidesmith/internal/llm"
	"slidesmith/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckProviderConfig(t *testing.T) {
	if r := CheckProviderConfig("x", config.Provider{Model: "m"}, true); r.Passed || r.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %#v", r)
	}
	if r := CheckProviderConfig("x", config.Provider{APIKey: "k"}, false); r.Passed {
		t.Fatalf("expected missing model failure, got %#v", r)
	}
	r := CheckProviderConfig("x", config.Provider{Kind: "openai", APIKey: "k", Model: "m"}, true)
	if !r.Passed || !strings.Contains(r.Name, "(default)") {
		t.Fatalf("unexpected result %#v", r)
	}
}

func openAIServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckProvider(t *testing.T) {
	ok := openAIServer(t, http.StatusOK)
	p := llm.NewOpenAI(llm.Config{Name: "local", APIKey: "k", BaseURL: ok.URL, Model: "m"})
	if r := CheckProvider(context.Background(), p); !r.Passed {
		t.Fatalf("expected pass, got %#v", r)
	}

	denied := openAIServer(t, http.StatusUnauthorized)
	p = llm.NewOpenAI(llm.Config{Name: "local", APIKey: "bad", BaseURL: denied.URL, Model: "m"})
	if r := CheckProvider(context.Background(), p); r.Passed || r.Detail != "auth failed (401)" {
		t.Fatalf("expected auth failure, got %#v", r)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if !Passed(results) {
		t.Fatalf("expected all checks to pass: %#v", results)
	}
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"Data directory", "Deck database", "Provider openrouter (default)", "Notifications"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
}
