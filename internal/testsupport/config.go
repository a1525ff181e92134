package testsupport

import (
	"path/filepath"
	"testing"

	"slidesmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Queue timing is shortened so render runs finish quickly, and the default
// provider carries a placeholder key.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Autosave.Path = filepath.Join(base, "data", "autosave.json")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Queue.InterJobDelayMS = 1
	cfgVal.Queue.BackoffStepMS = 1
	cfgVal.Queue.BackoffMaxMS = 5
	cfgVal.Autosave.DebounceMS = 10

	providers := make(map[string]config.Provider, len(cfgVal.Providers))
	for name, p := range cfgVal.Providers {
		p.APIKey = "test"
		providers[name] = p
	}
	cfgVal.Providers = providers

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithProvider registers (or replaces) a named provider and makes it the default.
func WithProvider(name string, provider config.Provider) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers[name] = provider
		b.cfg.LLM.DefaultProvider = name
	}
}

// WithAPIToken sets the daemon bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithAutosaveDisabled turns off session snapshots.
func WithAutosaveDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Autosave.Enabled = false
	}
}

// WithMaxRetries overrides the render queue retry limit.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxRetries = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
