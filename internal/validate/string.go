package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t\r\n]+`)
)

// Text sanitizes a single-line text field: invalid UTF-8 and markup are
// removed, control characters and line breaks collapse to single spaces,
// and the result is trimmed.
func Text(s string) string {
	return collapse(stripMarkup(s))
}

// TextArea sanitizes a multi-line text field. Line breaks survive; other
// whitespace runs inside a line collapse to one space.
func TextArea(s string) string {
	lines := strings.Split(strings.ReplaceAll(stripMarkup(s), "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = collapse(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// LicenseKey validates a manually entered license key.
// Keys issued by the service are 16 characters; imported keys may be longer.
func LicenseKey(key string) (string, error) {
	return String(Text(key), StringConstraints{
		MaxLength:  128,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}

func stripMarkup(s string) string {
	s = strings.ToValidUTF8(s, "")
	return tagPattern.ReplaceAllString(s, "")
}

func collapse(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
