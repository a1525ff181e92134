package preflight

import (
	"context"

	"slidesmith/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the local checks: directories, database and provider
// credentials. It never issues network requests.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDatabase(ctx, cfg.DatabasePath()),
	}
	for _, name := range cfg.ProviderNames() {
		_, pc, _ := cfg.ProviderConfig(name)
		results = append(results, CheckProviderConfig(name, pc, name == cfg.LLM.DefaultProvider))
	}
	results = append(results, CheckNotificationsFromConfig(cfg))
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
