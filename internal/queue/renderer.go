package queue

import (
	"context"
	"fmt"
	"html"
)

// RenderRequest describes one render attempt.
type RenderRequest struct {
	Job         Job
	Page        int
	Total       int
	Context     RunContext
	Instruction string
	// OnPartial receives the accumulated output while it streams. Nil disables streaming.
	OnPartial func(string)
}

// RenderResult is the outcome of a successful attempt.
type RenderResult struct {
	HTML  string
	Model string
	Cost  float64
}

// Renderer turns one job into slide HTML.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest) (RenderResult, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	return f(ctx, req)
}

// PlaceholderFunc builds the output stored on a job that exhausted its retries.
type PlaceholderFunc func(job Job, attempts int, err error) string

// DefaultPlaceholder is a minimal failed-slide section.
func DefaultPlaceholder(job Job, attempts int, err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf(`<section class="slide slide-failed"><h2>%s</h2><p>Rendering failed after %d retries.</p><pre>%s</pre></section>`,
		html.EscapeString(job.Title), attempts, html.EscapeString(msg))
}
