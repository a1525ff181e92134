package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"slidesmith/internal/config"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/logging"
)

// CheckDatabase opens the deck database and pings it. A database that does
// not exist yet passes; it is created on first use.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Deck database"
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	store, err := deckstore.OpenPath(path, logging.NewNop())
	if err != nil {
		if errors.Is(err, deckstore.ErrSchemaMismatch) {
			return Result{Name: name, Detail: "schema version mismatch (delete the database to start fresh)"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("ping failed: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckNotificationsFromConfig reports whether ntfy delivery is configured.
// Notifications are optional, so an empty topic still passes.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: topic}
}
