package config

// Default values for configuration fields. Centralizing these avoids magic
// numbers scattered across the codebase and documents expected defaults.
const (
	defaultDataDir              = "~/.local/share/slidesmith"
	defaultLogDir               = "~/.local/share/slidesmith/logs"
	defaultBind                 = "127.0.0.1:7410"
	defaultProviderName         = "openrouter"
	defaultOpenRouterBaseURL    = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel      = "google/gemini-3-flash-preview"
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultAnthropicBaseURL     = "https://api.anthropic.com/v1"
	defaultAnthropicModel       = "claude-sonnet-4-5"
	defaultGoogleModel          = "gemini-2.5-flash"
	defaultProviderReferer      = "https://github.com/slidesmith/slidesmith"
	defaultProviderTitle        = "Slidesmith"
	defaultProviderTimeout      = 60
	defaultOutlineRetryAttempts = 3
	defaultMaxOutputTokens      = 4096
	defaultMaxRetries           = 3
	defaultInterJobDelayMS      = 100
	defaultBackoffStepMS        = 100
	defaultBackoffMaxMS         = 2000
	defaultAutosaveDebounceMS   = 1000
	defaultAutosaveMaxAgeHours  = 7 * 24
	defaultNotifyTimeout        = 10
	defaultServiceName          = "slidesmith"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind: defaultBind,
		},
		Providers: map[string]Provider{
			defaultProviderName: {
				Kind:           ProviderKindOpenAI,
				BaseURL:        defaultOpenRouterBaseURL,
				Model:          defaultOpenRouterModel,
				Referer:        defaultProviderReferer,
				Title:          defaultProviderTitle,
				TimeoutSeconds: defaultProviderTimeout,
			},
		},
		LLM: LLM{
			DefaultProvider:      defaultProviderName,
			OutlineRetryAttempts: defaultOutlineRetryAttempts,
			MaxOutputTokens:      defaultMaxOutputTokens,
		},
		Queue: Queue{
			MaxRetries:      defaultMaxRetries,
			InterJobDelayMS: defaultInterJobDelayMS,
			BackoffStepMS:   defaultBackoffStepMS,
			BackoffMaxMS:    defaultBackoffMaxMS,
		},
		Autosave: Autosave{
			Enabled:     true,
			DebounceMS:  defaultAutosaveDebounceMS,
			MaxAgeHours: defaultAutosaveMaxAgeHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunCompleted:   true,
			Errors:         true,
		},
		Telemetry: Telemetry{
			ServiceName: defaultServiceName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// defaultBaseURL returns the canonical endpoint for a provider kind.
func defaultBaseURL(kind string) string {
	switch kind {
	case ProviderKindAnthropic:
		return defaultAnthropicBaseURL
	case ProviderKindGoogle:
		return ""
	default:
		return defaultOpenAIBaseURL
	}
}

func defaultModel(kind string) string {
	switch kind {
	case ProviderKindAnthropic:
		return defaultAnthropicModel
	case ProviderKindGoogle:
		return defaultGoogleModel
	default:
		return defaultOpenAIModel
	}
}

// envKeyForKind names the environment variable consulted when api_key is blank.
func envKeyForKind(name, kind string) string {
	if name == defaultProviderName {
		return "OPENROUTER_API_KEY"
	}
	switch kind {
	case ProviderKindAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderKindGoogle:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
