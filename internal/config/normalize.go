package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		c.Server.APIToken = strings.TrimSpace(os.Getenv("SLIDESMITH_API_TOKEN"))
	}

	if err := c.normalizeProviders(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizePricing()
	c.normalizeQueue()
	if err := c.normalizeAutosave(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeTelemetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeProviders() error {
	normalized := make(map[string]Provider, len(c.Providers))
	for rawName, p := range c.Providers {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if name == "" {
			return fmt.Errorf("providers: provider names must not be empty")
		}
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Kind == "" {
			p.Kind = ProviderKindOpenAI
		}
		p.APIKey = strings.TrimSpace(p.APIKey)
		if p.APIKey == "" {
			p.APIKey = strings.TrimSpace(os.Getenv(envKeyForKind(name, p.Kind)))
		}
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		if p.BaseURL == "" {
			p.BaseURL = defaultBaseURL(p.Kind)
			if name == defaultProviderName {
				p.BaseURL = defaultOpenRouterBaseURL
			}
		}
		p.Model = strings.TrimSpace(p.Model)
		if p.Model == "" {
			p.Model = defaultModel(p.Kind)
		}
		p.Referer = strings.TrimSpace(p.Referer)
		p.Title = strings.TrimSpace(p.Title)
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
		normalized[name] = p
	}
	c.Providers = normalized
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.DefaultProvider = strings.ToLower(strings.TrimSpace(c.LLM.DefaultProvider))
	if c.LLM.DefaultProvider == "" {
		if names := c.ProviderNames(); len(names) == 1 {
			c.LLM.DefaultProvider = names[0]
		} else {
			c.LLM.DefaultProvider = defaultProviderName
		}
	}
	if c.LLM.OutlineRetryAttempts <= 0 {
		c.LLM.OutlineRetryAttempts = defaultOutlineRetryAttempts
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = defaultMaxOutputTokens
	}
}

func (c *Config) normalizePricing() {
	out := c.Pricing[:0]
	for _, p := range c.Pricing {
		p.Model = strings.ToLower(strings.TrimSpace(p.Model))
		if p.Model == "" {
			continue
		}
		out = append(out, p)
	}
	c.Pricing = out
}

func (c *Config) normalizeQueue() {
	if c.Queue.MaxRetries < 0 {
		c.Queue.MaxRetries = defaultMaxRetries
	}
	if c.Queue.InterJobDelayMS < 0 {
		c.Queue.InterJobDelayMS = defaultInterJobDelayMS
	}
	if c.Queue.BackoffStepMS < 0 {
		c.Queue.BackoffStepMS = defaultBackoffStepMS
	}
	if c.Queue.BackoffMaxMS <= 0 {
		c.Queue.BackoffMaxMS = defaultBackoffMaxMS
	}
}

func (c *Config) normalizeAutosave() error {
	if strings.TrimSpace(c.Autosave.Path) == "" {
		c.Autosave.Path = c.Paths.DataDir + "/autosave.json"
	}
	var err error
	if c.Autosave.Path, err = expandPath(c.Autosave.Path); err != nil {
		return fmt.Errorf("autosave.path: %w", err)
	}
	if c.Autosave.DebounceMS <= 0 {
		c.Autosave.DebounceMS = defaultAutosaveDebounceMS
	}
	if c.Autosave.MaxAgeHours <= 0 {
		c.Autosave.MaxAgeHours = defaultAutosaveMaxAgeHours
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeTelemetry() {
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
