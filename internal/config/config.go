package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Provider kinds understood by the LLM adapter.
const (
	ProviderKindOpenAI    = "openai"
	ProviderKindAnthropic = "anthropic"
	ProviderKindGoogle    = "google"
)

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server contains HTTP API settings for the daemon.
type Server struct {
	Bind     string `toml:"bind"`
	APIToken string `toml:"api_token"`
}

// Provider describes one configured LLM endpoint.
type Provider struct {
	Kind           string `toml:"kind"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains settings shared by every provider.
type LLM struct {
	DefaultProvider      string `toml:"default_provider"`
	OutlineRetryAttempts int    `toml:"outline_retry_attempts"`
	MaxOutputTokens      int    `toml:"max_output_tokens"`
}

// Price is a per-model rate in dollars per million tokens.
type Price struct {
	Model            string  `toml:"model"`
	InputPerMillion  float64 `toml:"input_per_million"`
	OutputPerMillion float64 `toml:"output_per_million"`
}

// Queue contains the render queue timing and retry policy.
type Queue struct {
	MaxRetries      int `toml:"max_retries"`
	InterJobDelayMS int `toml:"inter_job_delay_ms"`
	BackoffStepMS   int `toml:"backoff_step_ms"`
	BackoffMaxMS    int `toml:"backoff_max_ms"`
}

// Autosave contains configuration for the session snapshot file.
type Autosave struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	DebounceMS  int    `toml:"debounce_ms"`
	MaxAgeHours int    `toml:"max_age_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Telemetry contains OpenTelemetry tracing settings.
type Telemetry struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for slidesmith.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories (database, autosave, logs)
//   - Server: daemon HTTP bind address and optional bearer token
//   - Providers: named LLM endpoints (openai-compatible, anthropic, google)
//   - LLM: default provider and outline retry policy
//   - Pricing: per-model price table used for cost estimates
//   - Queue: render queue retry cap and delays
//   - Autosave: session snapshot location, debounce, and staleness window
//   - Notifications: ntfy push notification settings
//   - Telemetry: OpenTelemetry tracing
//   - Logging: log format and level
type Config struct {
	Paths         Paths               `toml:"paths"`
	Server        Server              `toml:"server"`
	Providers     map[string]Provider `toml:"providers"`
	LLM           LLM                 `toml:"llm"`
	Pricing       []Price             `toml:"pricing"`
	Queue         Queue               `toml:"queue"`
	Autosave      Autosave            `toml:"autosave"`
	Notifications Notifications       `toml:"notifications"`
	Telemetry     Telemetry           `toml:"telemetry"`
	Logging       Logging             `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/slidesmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/slidesmith/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slidesmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Autosave.Enabled && c.Autosave.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.Autosave.Path), 0o755); err != nil {
			return fmt.Errorf("create autosave directory: %w", err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "slidesmith.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "slidesmith.lock")
}

// ProviderNames returns the configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderConfig returns the named provider, falling back to the default when name is empty.
func (c *Config) ProviderConfig(name string) (string, Provider, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = c.LLM.DefaultProvider
	}
	p, ok := c.Providers[name]
	return name, p, ok
}

// QueueTiming returns the render queue delays as durations.
func (c *Config) QueueTiming() (interJob, backoffStep, backoffMax time.Duration) {
	return time.Duration(c.Queue.InterJobDelayMS) * time.Millisecond,
		time.Duration(c.Queue.BackoffStepMS) * time.Millisecond,
		time.Duration(c.Queue.BackoffMaxMS) * time.Millisecond
}

// AutosaveMaxAge returns the staleness window for autosave snapshots.
func (c *Config) AutosaveMaxAge() time.Duration {
	return time.Duration(c.Autosave.MaxAgeHours) * time.Hour
}

// AutosaveDebounce returns the delay between a state change and its snapshot write.
func (c *Config) AutosaveDebounce() time.Duration {
	return time.Duration(c.Autosave.DebounceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
