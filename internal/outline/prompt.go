package outline

import (
	"fmt"
	"strings"

	"slidesmith/internal/language"
)

const systemPrompt = `You plan slide decks. Read the source material and split it into slides.
Respond with a single JSON object and nothing else:
{"title": string, "topic": string, "slides": [{"title": string, "points": [string], "layout": string}]}
"layout" is a short hint such as "title", "bullets", "two column", "quote", "image left", "timeline" or "comparison".
Each slide has at most 6 concise points. Preserve the order of the source.`

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create exactly %d slides.\n", req.SlideCount)
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(req.Topic))
	}
	if req.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", strings.TrimSpace(req.Audience))
	}
	if name := language.Name(req.Language); name != "" {
		fmt.Fprintf(&b, "Write all slide text in %s.\n", name)
	}
	b.WriteString("\nSource material:\n")
	b.WriteString(strings.TrimSpace(req.SourceText))
	b.WriteString("\n")
	return b.String()
}
