package language

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"  ", ""},
		{"en", "English"},
		{"EN", "English"},
		{"fr", "French"},
		{"fra", "French"},
		{"fre", "French"},
		{"ger", "German"},
		{"de", "German"},
		{"ja", "Japanese"},
		{"pt_BR", "Brazilian Portuguese"},
		{"es-MX", "Mexican Spanish"},
		{"German", "German"},
		{" plain English ", "plain English"},
		{"klingon", "klingon"},
	}
	for _, tt := range tests {
		if got := Name(tt.input); got != tt.expected {
			t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseRejectsNames(t *testing.T) {
	for _, input := range []string{"", "english", "x", "spanish please"} {
		if _, ok := Parse(input); ok {
			t.Errorf("Parse(%q) succeeded, want failure", input)
		}
	}
	tag, ok := Parse("nl")
	if !ok || tag.String() != "nl" {
		t.Fatalf("Parse(nl) = %v, %v", tag, ok)
	}
}
