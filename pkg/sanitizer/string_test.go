package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"leading and trailing", "  Main Hall  ", "Main Hall"},
		{"collapses inner whitespace", "Main   \t Hall", "Main Hall"},
		{"already normalized", "Main Hall", "Main Hall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.expected {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHallKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Main Hall", "main hall"},
		{"case variants collide", "MAIN HALL", "main hall"},
		{"whitespace variants collide", "  main   hall ", "main hall"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HallKey(tt.input)
			if got != tt.expected {
				t.Errorf("HallKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHallKeyIdempotent(t *testing.T) {
	inputs := []string{"Main Hall", "  SEMINAR  ROOM b ", "hall-3"}
	for _, in := range inputs {
		once := HallKey(in)
		twice := HallKey(once)
		if once != twice {
			t.Errorf("HallKey not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
