package sanitizer

import "testing"

func TestCollapseSpace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim", input: "  Studio Foto Ayu  ", want: "Studio Foto Ayu"},
		{name: "inner runs", input: "Studio    Foto  Ayu", want: "Studio Foto Ayu"},
		{name: "tabs and newlines", input: "Studio\t\nFoto Ayu", want: "Studio Foto Ayu"},
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: "   \t\n  ", want: ""},
		{name: "special characters kept", input: " Café & Spa™ ", want: "Café & Spa™"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CollapseSpace(tt.input); got != tt.want {
				t.Errorf("CollapseSpace(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeNote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "short note kept", input: " customer  rescheduled ", max: 50, want: "customer rescheduled"},
		{name: "cut at rune limit", input: "sakit mendadak", max: 5, want: "sakit"},
		{name: "trailing space after cut removed", input: "no show today", max: 3, want: "no"},
		{name: "multibyte runes counted once", input: "café ☕ pagi", max: 6, want: "café ☕"},
		{name: "no limit", input: "a  b", max: 0, want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeNote(tt.input, tt.max); got != tt.want {
				t.Errorf("NormalizeNote(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ayu.Lestari@Example.COM "); got != "ayu.lestari@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
