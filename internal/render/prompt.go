package render

import (
	"fmt"
	"strings"

	"slidesmith/internal/llm"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
)

const slideSystemPrompt = `You are a presentation designer producing a single slide as HTML.
Return exactly one <section class="slide"> element and nothing else: no markdown fences, no <html>, <head> or <body>.
Use inline styles or a scoped <style> block inside the section.
Reference colors only through the CSS custom properties listed in the palette (for example var(--primary)).
Keep text concise and legible at 1280x720. Do not invent facts beyond the provided points.`

// BuildPrompt renders the user prompt for one slide.
func BuildPrompt(req queue.RenderRequest) string {
	var b strings.Builder
	job := req.Job
	rc := req.Context

	fmt.Fprintf(&b, "Slide %d of %d.\n", req.Page, req.Total)
	if topic := strings.TrimSpace(rc.Topic); topic != "" {
		fmt.Fprintf(&b, "Presentation topic: %s\n", topic)
	}
	if audience := strings.TrimSpace(rc.Audience); audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", audience)
	}
	fmt.Fprintf(&b, "\nTitle: %s\n", strings.TrimSpace(job.Title))
	if len(job.ContentPoints) > 0 {
		b.WriteString("Content points (keep this order):\n")
		for i, point := range job.ContentPoints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(point))
		}
	}
	if hint := strings.TrimSpace(job.LayoutHint); hint != "" {
		fmt.Fprintf(&b, "Layout: %s\n", hint)
	}

	pal := rc.Palette
	if pal.IsZero() {
		pal = palette.Default()
	}
	b.WriteString("\nPalette (CSS custom properties already defined on the deck):\n")
	for i, name := range palette.Names {
		fmt.Fprintf(&b, "--%s: %s (%s)\n", strings.ReplaceAll(name, "_", "-"), pal.Colors[i], name)
	}

	if instruction := strings.TrimSpace(req.Instruction); instruction != "" {
		b.WriteString("\nAdditional instruction from the author:\n")
		b.WriteString(instruction)
		b.WriteString("\n")
		if strings.TrimSpace(job.Output) != "" {
			b.WriteString("\nCurrent slide HTML to revise:\n")
			b.WriteString(job.Output)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// CleanHTML strips code fences and surrounding whitespace from a response. A
// fence whose opening line has not finished streaming yields "".
func CleanHTML(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") && !strings.ContainsAny(trimmed, "\r\n") {
		return ""
	}
	return llm.StripCodeFence(trimmed)
}
