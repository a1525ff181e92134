// Package preflight provides readiness checks for the filesystem paths and
// LLM providers slidesmith depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and exposes the results on /api/status.
//   - "slidesmith status --ping" adds live provider pings (CheckProviders).
package preflight
