package export_test

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/export"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
)

func sampleSnapshot() queue.Snapshot {
	pal := palette.Default()
	pal.Colors[8] = "#123456"
	return queue.Snapshot{
		Status:          queue.RunComplete,
		AccumulatedCost: 0.42,
		Context:         &queue.RunContext{Palette: pal, Topic: "Cells", Audience: "students"},
		Jobs: []queue.Job{
			{ID: "a", Title: "Intro", ContentPoints: []string{"What", "Why"}, LayoutHint: "Title", Notes: "Say hi", Output: "<section>a</section>", State: queue.StateRendered},
			{ID: "b", Title: "Broken", ContentPoints: []string{"x"}, Output: "<section>failed after 3 retries</section>", State: queue.StateFailed, Error: "http 500", RetryCount: 3},
			{ID: "c", Title: "Later", ContentPoints: []string{}, State: queue.StatePending},
		},
	}
}

func TestProjectRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	doc := export.FromSnapshot("Cells 101", snap)

	var buf bytes.Buffer
	if err := export.ExportProject(&buf, doc); err != nil {
		t.Fatalf("ExportProject: %v", err)
	}
	if !strings.Contains(buf.String(), `"version": "1"`) {
		t.Fatalf("missing version tag: %s", buf.String())
	}

	imported, err := export.ImportProject(&buf)
	if err != nil {
		t.Fatalf("ImportProject: %v", err)
	}
	if imported.Palette.String() != snap.Context.Palette.String() {
		t.Fatalf("palette changed: %s", imported.Palette.String())
	}
	if imported.Title != "Cells 101" || imported.Cost != 0.42 {
		t.Fatalf("unexpected header %#v", imported)
	}

	jobs := imported.Jobs()
	if len(jobs) != len(snap.Jobs) {
		t.Fatalf("expected %d jobs, got %d", len(snap.Jobs), len(jobs))
	}
	for i, want := range snap.Jobs {
		got := jobs[i]
		if got.ID != want.ID || got.Title != want.Title || got.Output != want.Output || got.Error != want.Error {
			t.Fatalf("job %d mismatch: %#v vs %#v", i, got, want)
		}
		if !reflect.DeepEqual(got.ContentPoints, want.ContentPoints) {
			t.Fatalf("job %d points mismatch: %v vs %v", i, got.ContentPoints, want.ContentPoints)
		}
		if got.State != want.State {
			t.Fatalf("job %d state mismatch: %s vs %s", i, got.State, want.State)
		}
	}
}

func TestImportRejectsUnknownMajorVersion(t *testing.T) {
	for _, body := range []string{
		`{"version":"2","title":"x","palette":"","slides":[]}`,
		`{"title":"x"}`,
		`not json`,
	} {
		if _, err := export.ImportProject(strings.NewReader(body)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %s, got %v", body, err)
		}
	}
	if _, err := export.ImportProject(strings.NewReader(`{"version":"1.3","title":"ok","slides":[{"id":"a","title":"A"}]}`)); err != nil {
		t.Fatalf("minor versions should import: %v", err)
	}
}

func TestHTMLDeck(t *testing.T) {
	doc := export.FromSnapshot("Cells <101>", sampleSnapshot())
	var buf bytes.Buffer
	if err := export.HTML(&buf, doc); err != nil {
		t.Fatalf("HTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Cells &lt;101&gt;</title>",
		"--primary: #123456;",
		"<section>a</section>",
		`class="slide outline-fallback"`,
		"ArrowRight",
		`<aside class="notes">Say hi</aside>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestMarkdownAndNotes(t *testing.T) {
	doc := export.FromSnapshot("Cells", sampleSnapshot())

	var md bytes.Buffer
	if err := export.Markdown(&md, doc); err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	for _, want := range []string{"# Cells\n", "## 1. Intro", "- What\n- Why", "> Layout: Title", "_Rendering failed._"} {
		if !strings.Contains(md.String(), want) {
			t.Fatalf("markdown missing %q:\n%s", want, md.String())
		}
	}

	var notes bytes.Buffer
	if err := export.Notes(&notes, doc); err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if !strings.Contains(notes.String(), "Slide 1: Intro\nSay hi") || !strings.Contains(notes.String(), "Slide 3: Later\n(no notes)") {
		t.Fatalf("unexpected notes:\n%s", notes.String())
	}
}

func TestDeckConversions(t *testing.T) {
	doc := export.FromSnapshot("Cells", sampleSnapshot())
	deck := doc.Deck("deck-1")
	if deck.ID != "deck-1" || len(deck.Slides) != 3 || deck.Slides[1].Position != 2 || !deck.Slides[1].Failed {
		t.Fatalf("unexpected deck %#v", deck)
	}

	back := export.FromDeck(&deck)
	if back.Palette != doc.Palette || back.Slides[0].ID != "a" || back.Slides[0].Output != "<section>a</section>" {
		t.Fatalf("unexpected round trip %#v", back)
	}

	bad := deckstore.Deck{Title: "x", Palette: "garbage"}
	if got := export.FromDeck(&bad).Palette; got != palette.Default() {
		t.Fatalf("expected default palette fallback, got %v", got)
	}
}

func TestFileName(t *testing.T) {
	if got := export.FileName("My Deck", ".html"); !strings.HasSuffix(got, ".html") || strings.ContainsAny(got, "/\\") {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := export.FileName("", "md"); got != "untitled.md" {
		t.Fatalf("unexpected empty-title name %q", got)
	}
}
