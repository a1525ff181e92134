package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"slidesmith/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "slidesmith")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Autosave.Path != filepath.Join(wantData, "autosave.json") {
		t.Fatalf("unexpected autosave path: %q", cfg.Autosave.Path)
	}
	if cfg.Server.Bind != "127.0.0.1:7410" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	name, provider, ok := cfg.ProviderConfig("")
	if !ok || name != "openrouter" {
		t.Fatalf("expected default openrouter provider, got %q ok=%v", name, ok)
	}
	if provider.APIKey != "router-key" {
		t.Fatalf("expected API key from env, got %q", provider.APIKey)
	}
	if provider.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("unexpected base url: %q", provider.BaseURL)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Fatalf("expected max retries 3, got %d", cfg.Queue.MaxRetries)
	}
	interJob, step, maxDelay := cfg.QueueTiming()
	if interJob != 100*time.Millisecond || step != 100*time.Millisecond || maxDelay != 2*time.Second {
		t.Fatalf("unexpected queue timing: %v %v %v", interJob, step, maxDelay)
	}
	if cfg.AutosaveMaxAge() != 7*24*time.Hour {
		t.Fatalf("unexpected autosave max age: %v", cfg.AutosaveMaxAge())
	}
}

func TestLoadCustomConfigAddsProviders(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-env")

	configPath := filepath.Join(tempHome, "config.toml")
	content := `[paths]
data_dir = "~/decks"

[llm]
default_provider = "Claude"

[providers.claude]
kind = "Anthropic"

[providers.gemini]
kind = "google"
api_key = "gem-key"
model = "gemini-2.5-pro"

[queue]
max_retries = 5
backoff_step_ms = 50
backoff_max_ms = 400

[logging]
format = "JSON"
level = "debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "decks") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	name, claude, ok := cfg.ProviderConfig("")
	if !ok || name != "claude" {
		t.Fatalf("expected claude default provider, got %q", name)
	}
	if claude.Kind != config.ProviderKindAnthropic {
		t.Fatalf("expected anthropic kind, got %q", claude.Kind)
	}
	if claude.APIKey != "anthropic-env" {
		t.Fatalf("expected env fallback key, got %q", claude.APIKey)
	}
	if claude.BaseURL != "https://api.anthropic.com/v1" {
		t.Fatalf("unexpected anthropic base url: %q", claude.BaseURL)
	}
	_, gemini, ok := cfg.ProviderConfig("GEMINI")
	if !ok || gemini.Model != "gemini-2.5-pro" || gemini.APIKey != "gem-key" {
		t.Fatalf("unexpected gemini provider: %+v", gemini)
	}
	if cfg.Queue.MaxRetries != 5 || cfg.Queue.BackoffMaxMS != 400 {
		t.Fatalf("unexpected queue settings: %+v", cfg.Queue)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
}

func TestValidateRejectsUnknownProviderKind(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `[providers.local]
kind = "ollama"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "providers.local.kind") {
		t.Fatalf("expected provider kind error, got %v", err)
	}
}

func TestValidateRejectsMissingDefaultProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.DefaultProvider = "missing"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "llm.default_provider") {
		t.Fatalf("expected default provider error, got %v", err)
	}
}

func TestValidateRejectsBadBind(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Bind = "localhost"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected bind validation error")
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if _, ok := raw["queue"]; !ok {
		t.Fatal("expected sample to include [queue] section")
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Pricing) != 1 || cfg.Pricing[0].Model != "google/gemini-3-flash-preview" {
		t.Fatalf("expected sample pricing entry, got %+v", cfg.Pricing)
	}
}

func TestEnsureDirectoriesCreatesDataDir(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "data", "logs")
	cfg.Autosave.Path = filepath.Join(base, "snap", "autosave.json")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, filepath.Dir(cfg.Autosave.Path)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.DataDir, "slidesmith.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}
