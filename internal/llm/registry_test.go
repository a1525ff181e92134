package llm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"slidesmith/internal/config"
	"slidesmith/internal/llm"
	"slidesmith/internal/services"
)

func TestNewRegistryBuildsConfiguredProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Providers["claude"] = config.Provider{Kind: config.ProviderKindAnthropic, APIKey: "a", BaseURL: "https://api.anthropic.com/v1", Model: "claude-sonnet-4-5"}
	cfg.Providers["gemini"] = config.Provider{Kind: config.ProviderKindGoogle, APIKey: "g", Model: "gemini-2.5-flash"}
	cfg.Pricing = []config.Price{{Model: "claude-sonnet", InputPerMillion: 1, OutputPerMillion: 1}}

	reg, err := llm.NewRegistry(&cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"claude", "gemini", "openrouter"}, reg.Names())
	require.Equal(t, "openrouter", reg.DefaultName())

	def, err := reg.Default()
	require.NoError(t, err)
	require.IsType(t, &llm.OpenAIProvider{}, def)

	claude, err := reg.Get("Claude")
	require.NoError(t, err)
	require.IsType(t, &llm.AnthropicProvider{}, claude)

	gemini, err := reg.Get("gemini")
	require.NoError(t, err)
	require.IsType(t, &llm.GoogleProvider{}, gemini)

	p, ok := reg.Prices().Lookup("claude-sonnet-4-5")
	require.True(t, ok)
	require.Equal(t, 1.0, p.InputPerMillion, "config pricing overrides defaults")

	_, err = reg.Get("missing")
	require.True(t, errors.Is(err, services.ErrConfiguration))
}

func TestRegistryRegister(t *testing.T) {
	reg := &llm.Registry{}
	reg.Register(&scriptedProvider{})
	p, err := reg.Default()
	require.NoError(t, err)
	require.Equal(t, "scripted", p.Name())
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := llm.New("ollama", llm.Config{})
	require.ErrorIs(t, err, services.ErrConfiguration)
}
