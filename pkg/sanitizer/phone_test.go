package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid E.164 format",
			input: "+6281234567890",
			want:  "+6281234567890",
		},
		{
			name:  "with spaces",
			input: "+62 812 3456 7890",
			want:  "+6281234567890",
		},
		{
			name:  "with dashes",
			input: "+62-812-3456-7890",
			want:  "+6281234567890",
		},
		{
			name:  "local trunk prefix",
			input: "0812-3456-7890",
			want:  "+6281234567890",
		},
		{
			name:  "foreign number keeps its country code",
			input: "+1 (212) 555-1234",
			want:  "+12125551234",
		},
		{
			name:  "leading and trailing spaces",
			input: "  +6281234567890  ",
			want:  "+6281234567890",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
		{
			name:  "not a number",
			input: "call me",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	once := NormalizePhone("0812 3456 7890")
	if twice := NormalizePhone(once); twice != once {
		t.Errorf("NormalizePhone not idempotent: %q then %q", once, twice)
	}
}
