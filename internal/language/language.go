package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ISO 639-2/B codes that BCP 47 parsing does not accept.
var bibliographic = map[string]string{
	"fre": "fr",
	"ger": "de",
	"chi": "zh",
	"dut": "nl",
	"cze": "cs",
	"gre": "el",
	"per": "fa",
	"rum": "ro",
}

var namer = display.English.Tags()

// Name returns the English name for a language code or tag. Values that do
// not parse as a tag, such as "German" or "plain English", are returned
// trimmed so they can be used in a prompt verbatim. Empty input returns "".
func Name(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	tag, ok := Parse(value)
	if !ok {
		return value
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return value
}

// Parse resolves value to a language tag. It accepts BCP 47 tags, ISO 639-1
// and 639-2 codes, and underscore separated locales like "pt_BR".
func Parse(value string) (language.Tag, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return language.Und, false
	}
	if mapped, ok := bibliographic[value]; ok {
		value = mapped
	}
	// BCP 47 allows five to eight letter language subtags, so a word like
	// "german" would parse. Only two and three letter codes are accepted.
	base, _, _ := strings.Cut(strings.ReplaceAll(value, "_", "-"), "-")
	if len(base) < 2 || len(base) > 3 {
		return language.Und, false
	}
	tag, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}
