package logging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidesmith/internal/config"
	"slidesmith/internal/logging"
	"slidesmith/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "slidesmith.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "queue").Info("job settled",
		logging.String("state", "done"),
		logging.String("title", "Two words"),
		logging.Error(errors.New("none")),
	)
	logger.Debug("hidden")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO queue: job settled", "state=done", `title="Two words"`, "error=none"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("expected debug line to be filtered, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no source location at info level, got %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("careful")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"ts":`, `"level":"warn"`, `"msg":"careful"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsServiceFields(t *testing.T) {
	hub := logging.NewHub(8)
	base := logging.TeeLogger(nil, hub.Handler(-4))

	ctx := services.WithDeckID(context.Background(), "deck-7")
	ctx = services.WithJobID(ctx, "job-3")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, base).Info("rendering")

	events, next := hub.Since(0, 10)
	if len(events) != 1 || next != 1 {
		t.Fatalf("expected one event, got %d (next=%d)", len(events), next)
	}
	evt := events[0]
	if evt.DeckID != "deck-7" || evt.JobID != "job-3" {
		t.Fatalf("unexpected ids: %+v", evt)
	}
	if evt.Fields["correlation_id"] != "req-1" {
		t.Fatalf("expected correlation id field, got %v", evt.Fields)
	}
}

func TestHubEvictsOldestEvents(t *testing.T) {
	hub := logging.NewHub(2)
	logger := logging.TeeLogger(logging.NewNop(), hub.Handler(0))
	logger.Info("one")
	logger.Info("two")
	logger.Info("three")

	events, next := hub.Since(0, 0)
	if len(events) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(events))
	}
	if events[0].Message != "two" || events[1].Message != "three" || next != 3 {
		t.Fatalf("unexpected events: %+v next=%d", events, next)
	}
	more, after := hub.Since(next, 0)
	if len(more) != 0 || after != next {
		t.Fatalf("expected no new events, got %d", len(more))
	}
}
