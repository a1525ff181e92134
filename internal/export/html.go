package export

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"slidesmith/internal/palette"
)

//go:embed deck.html.tmpl
var deckTemplateText string

var deckTemplate = template.Must(template.New("deck").Parse(deckTemplateText))

type htmlSlide struct {
	Index   int
	Title   string
	Body    template.HTML
	Notes   string
	Failed  bool
	Content []string
}

type htmlDeck struct {
	Title  string
	Vars   template.CSS
	Slides []htmlSlide
}

// HTML writes a self-contained deck with the palette as CSS variables and
// arrow-key navigation. Slides without output fall back to their outline.
func HTML(w io.Writer, doc Document) error {
	pal := doc.Palette
	if pal.IsZero() {
		pal = palette.Default()
	}
	data := htmlDeck{
		Title: doc.Title,
		Vars:  template.CSS(pal.CSSVars()),
	}
	for i, s := range doc.Slides {
		data.Slides = append(data.Slides, htmlSlide{
			Index: i,
			Title: s.Title,
			// Slide output is generated markup and is embedded as-is.
			Body:    template.HTML(s.Output),
			Notes:   s.Notes,
			Failed:  s.Failed,
			Content: s.ContentPoints,
		})
	}
	if err := deckTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html deck: %w", err)
	}
	return nil
}
