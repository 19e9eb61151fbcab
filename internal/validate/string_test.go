package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		wantErr     error
		wantOutput  string
	}{
		{
			name:        "valid string within length constraints",
			input:       "  Hello World ",
			constraints: StringConstraints{MinLength: 5, MaxLength: 20, TrimSpace: true},
			wantOutput:  "Hello World",
		},
		{
			name:        "string too short",
			input:       "Hi",
			constraints: StringConstraints{MinLength: 5},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "string too long",
			input:       strings.Repeat("a", 101),
			constraints: StringConstraints{MaxLength: 100},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "empty string not allowed",
			input:       "",
			constraints: StringConstraints{},
			wantErr:     ErrEmpty,
		},
		{
			name:        "empty string allowed",
			input:       "",
			constraints: StringConstraints{AllowEmpty: true},
			wantOutput:  "",
		},
		{
			name:  "pattern mismatch",
			input: "abc!",
			constraints: StringConstraints{
				AllowedPattern: regexp.MustCompile(`^[a-z]+$`),
			},
			wantErr: ErrInvalidCharacters,
		},
		{
			name:        "multibyte characters counted as runes",
			input:       "ÉÉÉ",
			constraints: StringConstraints{MaxLength: 3},
			wantOutput:  "ÉÉÉ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantOutput {
				t.Errorf("expected %q, got %q", tt.wantOutput, got)
			}
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Living Room", "Living Room"},
		{"trims", "  Kitchen \n", "Kitchen"},
		{"strips tags", "<b>Lobby</b><script>x()</script>", "Lobbyx()"},
		{"collapses whitespace", "Master\t\tBedroom\n\nView", "Master Bedroom View"},
		{"drops control characters", "Gar\x00age\x07", "Garage"},
		{"invalid utf8 removed", "Roof\xfftop", "Rooftop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextArea(t *testing.T) {
	got := TextArea("  First   line\r\nSecond <i>line</i>  \n")
	want := "First line\nSecond line"
	if got != want {
		t.Errorf("TextArea() = %q, want %q", got, want)
	}
}

func TestLicenseKey(t *testing.T) {
	got, err := LicenseKey("  ABCD1234EFGH5678 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ABCD1234EFGH5678" {
		t.Errorf("expected trimmed key, got %q", got)
	}

	if _, err := LicenseKey("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty for blank key, got %v", err)
	}
	if _, err := LicenseKey(strings.Repeat("K", 129)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("expected ErrStringTooLong, got %v", err)
	}
}
