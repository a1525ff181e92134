package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/logging"
	"slidesmith/internal/outline"
)

func TestOutlineCommandPrintsPlan(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLIWithInput(t, []string{"outline", "-n", "3"}, env.configPath, "Some notes about testing.")
	if err != nil {
		t.Fatalf("outline: %v", err)
	}
	requireContains(t, out, fakeDeckTitle)
	for _, title := range fakeSlideTitles {
		requireContains(t, out, title)
	}

	out, _, err = runCLIWithInput(t, []string{"outline", "-n", "2", "--json"}, env.configPath, "Some notes about testing.")
	if err != nil {
		t.Fatalf("outline --json: %v", err)
	}
	var result outline.Outline
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode outline json: %v\n%s", err, out)
	}
	if result.Title != fakeDeckTitle || len(result.Jobs) != 2 {
		t.Fatalf("unexpected outline: %+v", result)
	}
}

func TestOutlineCommandRejectsEmptySource(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLIWithInput(t, []string{"outline"}, env.configPath, "   \n")
	if err == nil {
		t.Fatal("expected empty source error")
	}
	requireContains(t, err.Error(), "source text is empty")
}

func TestRenderCommandWritesAndSavesDeck(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.baseDir, "notes.txt")
	if err := os.WriteFile(source, []byte("Testing matters.\nShip it."), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	target := filepath.Join(env.baseDir, "out", "deck.html")

	_, stderr, err := runCLI(t, []string{"render", source, "-n", "3", "-o", target, "--save", "--label", "first"}, env.configPath)
	if err != nil {
		t.Fatalf("render: %v\n%s", err, stderr)
	}
	requireContains(t, stderr, "Rendered 3/3 slides")
	requireContains(t, stderr, "Saved deck")
	requireContains(t, stderr, "Wrote "+target)

	html, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	requireContains(t, string(html), "<h1>Slide</h1>")
	requireContains(t, string(html), fakeDeckTitle)

	if _, err := os.Stat(env.cfg.Autosave.Path); !os.IsNotExist(err) {
		t.Fatalf("headless render touched the autosave file: %v", err)
	}

	store, err := deckstore.Open(env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("deckstore.Open: %v", err)
	}
	defer store.Close()
	decks, err := store.ListDecks(t.Context(), "", 10)
	if err != nil {
		t.Fatalf("ListDecks: %v", err)
	}
	if len(decks) != 1 || decks[0].Title != fakeDeckTitle || decks[0].SlideCount != 3 {
		t.Fatalf("unexpected stored decks: %+v", decks)
	}
}

func TestRenderCommandToStdout(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLIWithInput(t, []string{"render", "-n", "2", "-f", "markdown", "-o", "-"}, env.configPath, "Two slides please.")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, "# "+fakeDeckTitle)
	requireContains(t, out, "## 1. Opening")
	requireContains(t, out, "## 2. Middle")
	if strings.Contains(out, "## 3.") {
		t.Fatalf("expected two slides in markdown:\n%s", out)
	}
}

func TestRenderCommandRejectsBadPalette(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLIWithInput(t, []string{"render", "--palette", "nope"}, env.configPath, "text")
	if err == nil {
		t.Fatal("expected palette error")
	}
	requireContains(t, err.Error(), "invalid palette")
	if calls := env.llm.calls.Load(); calls != 0 {
		t.Fatalf("llm called %d times before palette validation", calls)
	}
}
