// Package config loads, normalizes, and validates slidesmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// credentials such as OPENAI_API_KEY, ANTHROPIC_API_KEY, and GEMINI_API_KEY.
// The Config type centralizes every knob the daemon and CLI need: the data
// directory, LLM providers and their price table, render queue timing, autosave
// behaviour, notifications, telemetry, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider kinds, and clear validation errors.
package config
