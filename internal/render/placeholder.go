package render

import (
	"fmt"
	"html"
	"strings"

	"slidesmith/internal/queue"
	"slidesmith/internal/textutil"
)

// Placeholder builds the slide shown for a job that exhausted its retries. It
// keeps the title and points visible so the deck stays presentable.
func Placeholder(job queue.Job, attempts int, err error) string {
	var b strings.Builder
	b.WriteString(`<section class="slide slide-failed" style="background:var(--surface);color:var(--text);padding:48px;border:2px dashed var(--danger)">`)
	fmt.Fprintf(&b, `<h2 style="color:var(--heading)">%s</h2>`, html.EscapeString(job.Title))
	if len(job.ContentPoints) > 0 {
		b.WriteString("<ul>")
		for _, point := range job.ContentPoints {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(point))
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, `<p style="color:var(--danger)">Rendering failed after %d retries.</p>`, attempts)
	if err != nil {
		fmt.Fprintf(&b, `<p style="color:var(--text-muted);font-size:0.8em">%s</p>`, html.EscapeString(textutil.Truncate(err.Error(), 240)))
	}
	b.WriteString("</section>")
	return b.String()
}

var _ queue.PlaceholderFunc = Placeholder
