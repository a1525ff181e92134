package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/testsupport"
)

func seedDeck(t *testing.T, env *cliTestEnv, title string, slides ...string) *deckstore.Deck {
	t.Helper()
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, env.cfg)
	deck := testsupport.NewDeck(t, store, title, slides...)
	if err := store.Close(); err != nil {
		t.Fatalf("store.Close: %v", err)
	}
	return deck
}

func TestDeckListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"deck", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("deck list: %v", err)
	}
	requireContains(t, out, "No decks stored")

	deck := seedDeck(t, env, "Quarterly Review", "Revenue", "Hiring")
	seedDeck(t, env, "Team Offsite", "Agenda")

	out, _, err = runCLI(t, []string{"deck", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("deck list: %v", err)
	}
	requireContains(t, out, "Quarterly Review")
	requireContains(t, out, "Team Offsite")

	out, _, err = runCLI(t, []string{"deck", "list", "--query", "offsite", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("deck list --json: %v", err)
	}
	var summaries []deckstore.DeckSummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode deck list: %v\n%s", err, out)
	}
	if len(summaries) != 1 || summaries[0].Title != "Team Offsite" {
		t.Fatalf("unexpected filtered decks: %+v", summaries)
	}

	out, _, err = runCLI(t, []string{"deck", "show", deck.ID}, env.configPath)
	if err != nil {
		t.Fatalf("deck show: %v", err)
	}
	requireContains(t, out, "ID:       "+deck.ID)
	requireContains(t, out, "Revenue")
	requireContains(t, out, "Hiring")

	out, _, err = runCLI(t, []string{"deck", "history", deck.ID}, env.configPath)
	if err != nil {
		t.Fatalf("deck history: %v", err)
	}
	requireContains(t, out, "created")

	if _, _, err := runCLI(t, []string{"deck", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected not found error")
	} else {
		requireContains(t, err.Error(), "not found")
	}
}

func TestDeckExportAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := seedDeck(t, env, "Launch Plan", "Goals", "Timeline")

	out, _, err := runCLI(t, []string{"deck", "export", deck.ID, "-f", "markdown", "-o", "-"}, env.configPath)
	if err != nil {
		t.Fatalf("deck export: %v", err)
	}
	requireContains(t, out, "# Launch Plan")
	requireContains(t, out, "## 2. Timeline")
	requireContains(t, out, "- Goals point")

	target := filepath.Join(env.baseDir, "exports", "launch.html")
	_, stderr, err := runCLI(t, []string{"deck", "export", deck.ID, "-o", target}, env.configPath)
	if err != nil {
		t.Fatalf("deck export html: %v", err)
	}
	requireContains(t, stderr, "Wrote "+target)
	html, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	requireContains(t, string(html), "Launch Plan")

	if _, _, err := runCLI(t, []string{"deck", "export", deck.ID, "-f", "pdf"}, env.configPath); err == nil {
		t.Fatal("expected unknown format error")
	}

	out, _, err = runCLI(t, []string{"deck", "delete", deck.ID}, env.configPath)
	if err != nil {
		t.Fatalf("deck delete: %v", err)
	}
	requireContains(t, out, "Deleted deck "+deck.ID)
	if _, _, err := runCLI(t, []string{"deck", "show", deck.ID}, env.configPath); err == nil {
		t.Fatal("expected deleted deck to be gone")
	}
}

func TestProjectRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := seedDeck(t, env, "Roadmap", "Now", "Next", "Later")

	target := filepath.Join(env.baseDir, "roadmap.json")
	if _, _, err := runCLI(t, []string{"project", "export", deck.ID, "-o", target}, env.configPath); err != nil {
		t.Fatalf("project export: %v", err)
	}

	out, _, err := runCLI(t, []string{"project", "import", target, "--title", "Roadmap Copy"}, env.configPath)
	if err != nil {
		t.Fatalf("project import: %v", err)
	}
	requireContains(t, out, `Imported "Roadmap Copy"`)
	requireContains(t, out, "(3 slides)")

	out, _, err = runCLI(t, []string{"deck", "list", "--query", "Roadmap Copy", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("deck list: %v", err)
	}
	var summaries []deckstore.DeckSummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode deck list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID == deck.ID || summaries[0].SlideCount != 3 {
		t.Fatalf("unexpected imported deck: %+v", summaries)
	}

	bad := filepath.Join(env.baseDir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write bad project: %v", err)
	}
	if _, _, err := runCLI(t, []string{"project", "import", bad}, env.configPath); err == nil {
		t.Fatal("expected malformed project error")
	}
}
