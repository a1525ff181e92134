package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"slidesmith/internal/config"
	"slidesmith/internal/daemon"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/testsupport"
	"slidesmith/internal/workflow"
)

const fakeDeckTitle = "Fake Deck"

var fakeSlideTitles = []string{"Opening", "Middle", "Closing"}

// fakeLLM answers OpenAI-style chat completions: outline requests get a
// three slide plan, everything else gets a section of HTML.
type fakeLLM struct {
	server *httptest.Server
	calls  atomic.Int64
}

func newFakeLLM(t *testing.T) *fakeLLM {
	t.Helper()
	f := &fakeLLM{}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeLLM) serve(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream bool `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	system := ""
	if len(req.Messages) > 0 {
		system = req.Messages[0].Content
	}

	content := "<section><h1>Slide</h1></section>"
	if strings.Contains(system, "You plan slide decks") {
		slides := make([]map[string]any, 0, len(fakeSlideTitles))
		for _, title := range fakeSlideTitles {
			slides = append(slides, map[string]any{
				"title":  title,
				"points": []string{title + " point"},
				"layout": "bullets",
			})
		}
		data, _ := json.Marshal(map[string]any{"title": fakeDeckTitle, "topic": "testing", "slides": slides})
		content = string(data)
	}

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk, _ := json.Marshal(content)
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", chunk)
		fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": "fake-model",
		"choices": []map[string]any{{
			"message":       map[string]string{"content": content},
			"finish_reason": "stop",
		}},
	})
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	llm        *fakeLLM
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	fake := newFakeLLM(t)
	cfg := testsupport.NewConfig(t, testsupport.WithProvider("fake", config.Provider{
		Kind:           config.ProviderKindOpenAI,
		APIKey:         "test",
		BaseURL:        fake.server.URL,
		Model:          "fake-model",
		TimeoutSeconds: 5,
	}))
	// Built-in providers keep no key so nothing reaches a real endpoint.
	for name := range cfg.Providers {
		if name != "fake" {
			delete(cfg.Providers, name)
		}
	}
	for _, key := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "SLIDESMITH_API_TOKEN"} {
		t.Setenv(key, "")
	}
	cfg.Server.Bind = unusedAddress(t)
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		llm:        fake,
	}
}

// startDaemon runs a daemon for env in-process and rewrites the config to
// point at its resolved address.
func (env *cliTestEnv) startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	env.cfg.Server.Bind = "127.0.0.1:0"
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	registry, err := llm.NewRegistry(env.cfg)
	if err != nil {
		t.Fatalf("llm.NewRegistry: %v", err)
	}
	store, err := deckstore.Open(env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("deckstore.Open: %v", err)
	}
	logger := logging.NewNop()
	hub := logging.NewHub(256)
	manager := workflow.New(env.cfg, registry, store, logger)
	d, err := daemon.New(env.cfg, store, manager, hub, logging.TeeLogger(logger, hub.Handler(slog.LevelDebug)))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	env.cfg.Server.Bind = d.Address()
	writeTestConfig(t, env.configPath, env.cfg)
	return d
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\nlog_dir = %q\n\n", cfg.Paths.DataDir, cfg.Paths.LogDir)
	fmt.Fprintf(&b, "[server]\nbind = %q\napi_token = %q\n\n", cfg.Server.Bind, cfg.Server.APIToken)
	fmt.Fprintf(&b, "[llm]\ndefault_provider = %q\noutline_retry_attempts = 1\n\n", cfg.LLM.DefaultProvider)
	for _, name := range cfg.ProviderNames() {
		p := cfg.Providers[name]
		fmt.Fprintf(&b, "[providers.%s]\nkind = %q\napi_key = %q\nbase_url = %q\nmodel = %q\n\n", name, p.Kind, p.APIKey, p.BaseURL, p.Model)
	}
	fmt.Fprintf(&b, "[queue]\nmax_retries = 1\ninter_job_delay_ms = 1\nbackoff_step_ms = 1\nbackoff_max_ms = 5\n\n")
	fmt.Fprintf(&b, "[autosave]\nenabled = %t\npath = %q\ndebounce_ms = 10\n", cfg.Autosave.Enabled, cfg.Autosave.Path)
	testsupport.WriteFile(t, path, []byte(b.String()))
}

// unusedAddress returns a loopback address nothing is listening on.
func unusedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
