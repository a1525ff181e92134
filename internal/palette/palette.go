// Package palette models the fixed 18-slot color token set applied to every
// slide of a run. Tokens are injected into render prompts and exported decks.
package palette

import (
	"fmt"
	"regexp"
	"strings"
)

// Token names in canonical order.
var Names = [Size]string{
	"background",
	"surface",
	"surface_alt",
	"text",
	"text_muted",
	"heading",
	"border",
	"divider",
	"primary",
	"secondary",
	"accent",
	"accent_alt",
	"success",
	"warning",
	"danger",
	"info",
	"highlight",
	"shadow",
}

// Size is the number of tokens in a palette.
const Size = 18

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Palette holds one hex color per token, in Names order.
type Palette struct {
	Colors [Size]string
}

// Default returns the built-in dark palette.
func Default() Palette {
	return Palette{Colors: [Size]string{
		"#0f172a", // background
		"#1e293b", // surface
		"#273449", // surface_alt
		"#e2e8f0", // text
		"#94a3b8", // text_muted
		"#f8fafc", // heading
		"#334155", // border
		"#475569", // divider
		"#38bdf8", // primary
		"#818cf8", // secondary
		"#f472b6", // accent
		"#fb923c", // accent_alt
		"#22c55e", // success
		"#eab308", // warning
		"#ef4444", // danger
		"#0ea5e9", // info
		"#fde047", // highlight
		"#020617", // shadow
	}}
}

// Parse accepts either "name=#hex,..." pairs covering every token or 18 bare
// comma-separated colors in canonical order. Colors are lowercased.
func Parse(value string) (Palette, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Palette{}, fmt.Errorf("palette: empty value")
	}
	parts := strings.Split(value, ",")
	var p Palette
	if strings.Contains(value, "=") {
		seen := make(map[string]bool, Size)
		for _, part := range parts {
			name, color, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				return Palette{}, fmt.Errorf("palette: entry %q is not name=color", part)
			}
			name = strings.ToLower(strings.TrimSpace(name))
			idx := Index(name)
			if idx < 0 {
				return Palette{}, fmt.Errorf("palette: unknown token %q", name)
			}
			if seen[name] {
				return Palette{}, fmt.Errorf("palette: duplicate token %q", name)
			}
			seen[name] = true
			p.Colors[idx] = strings.ToLower(strings.TrimSpace(color))
		}
		if len(seen) != Size {
			return Palette{}, fmt.Errorf("palette: expected %d tokens, got %d", Size, len(seen))
		}
	} else {
		if len(parts) != Size {
			return Palette{}, fmt.Errorf("palette: expected %d colors, got %d", Size, len(parts))
		}
		for i, part := range parts {
			p.Colors[i] = strings.ToLower(strings.TrimSpace(part))
		}
	}
	if err := p.Validate(); err != nil {
		return Palette{}, err
	}
	return p, nil
}

// Index returns the slot of a token name, or -1.
func Index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Validate reports the first token whose color is not a hex color.
func (p Palette) Validate() error {
	for i, c := range p.Colors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("palette: %s has invalid color %q", Names[i], c)
		}
	}
	return nil
}

// Get returns the color assigned to a token name.
func (p Palette) Get(name string) (string, bool) {
	idx := Index(name)
	if idx < 0 {
		return "", false
	}
	return p.Colors[idx], true
}

// IsZero reports whether no colors have been assigned.
func (p Palette) IsZero() bool {
	return p == Palette{}
}

// String renders the canonical "name=#hex,..." form.
func (p Palette) String() string {
	var b strings.Builder
	for i, n := range Names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(p.Colors[i])
	}
	return b.String()
}

// CSSVars renders the palette as CSS custom properties (--background: #0f172a;).
func (p Palette) CSSVars() string {
	var b strings.Builder
	for i, n := range Names {
		fmt.Fprintf(&b, "--%s: %s;\n", strings.ReplaceAll(n, "_", "-"), p.Colors[i])
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler using the canonical string form.
func (p Palette) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value leaves the zero palette.
func (p *Palette) UnmarshalText(data []byte) error {
	if strings.TrimSpace(string(data)) == "" {
		*p = Palette{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
