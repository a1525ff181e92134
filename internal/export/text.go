package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Markdown writes the deck outline: one heading per slide with its points.
func Markdown(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", oneLine(doc.Title))
	if doc.Topic != "" {
		fmt.Fprintf(bw, "\n_%s_\n", oneLine(doc.Topic))
	}
	for i, s := range doc.Slides {
		fmt.Fprintf(bw, "\n## %d. %s\n", i+1, oneLine(s.Title))
		if s.LayoutHint != "" {
			fmt.Fprintf(bw, "\n> Layout: %s\n", oneLine(s.LayoutHint))
		}
		if len(s.ContentPoints) > 0 {
			bw.WriteString("\n")
			for _, p := range s.ContentPoints {
				fmt.Fprintf(bw, "- %s\n", oneLine(p))
			}
		}
		if s.Failed {
			bw.WriteString("\n_Rendering failed._\n")
		}
	}
	return bw.Flush()
}

// Notes writes the speaker notes of every slide as plain text.
func Notes(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%s\n", doc.Title, strings.Repeat("=", len([]rune(doc.Title))))
	for i, s := range doc.Slides {
		fmt.Fprintf(bw, "\nSlide %d: %s\n", i+1, oneLine(s.Title))
		notes := strings.TrimSpace(s.Notes)
		if notes == "" {
			notes = "(no notes)"
		}
		bw.WriteString(notes)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
