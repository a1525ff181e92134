package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateProviders() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one [providers.<name>] section is required")
	}
	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		switch p.Kind {
		case ProviderKindOpenAI, ProviderKindAnthropic, ProviderKindGoogle:
		default:
			return fmt.Errorf("providers.%s.kind must be one of openai, anthropic, google (got %q)", name, p.Kind)
		}
		if p.Kind != ProviderKindGoogle && p.BaseURL == "" {
			return fmt.Errorf("providers.%s.base_url must be set", name)
		}
	}
	if _, ok := c.Providers[c.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("llm.default_provider %q does not match a configured provider", c.LLM.DefaultProvider)
	}
	return nil
}

func (c *Config) validatePricing() error {
	for _, p := range c.Pricing {
		if p.InputPerMillion < 0 || p.OutputPerMillion < 0 {
			return fmt.Errorf("pricing for %q must not be negative", p.Model)
		}
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.BackoffStepMS > c.Queue.BackoffMaxMS {
		return errors.New("queue.backoff_step_ms must not exceed queue.backoff_max_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
