// Package logging assembles structured slog loggers and formatting helpers used
// across slidesmith.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so queue and API code can tag log
// lines with deck IDs, job IDs, and correlation IDs automatically. A bounded
// in-memory hub keeps recent events for the daemon's log endpoint, and a no-op
// logger is available for tests and wiring code that cannot fail.
package logging
