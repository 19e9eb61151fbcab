// Package color validates and normalizes the CSS colors used in tour themes.
package color

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// hexColorPattern matches #RGB and #RRGGBB (case insensitive).
var hexColorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// Common validation errors
var (
	ErrInvalidHexFormat = errors.New("invalid hex color format, expected #RGB or #RRGGBB")
)

// IsValidHexColor validates that a color string is in #RGB or #RRGGBB format.
func IsValidHexColor(color string) bool {
	return hexColorPattern.MatchString(color)
}

// Normalize expands shorthand hex colors and lowercases them.
// "#FFF" becomes "#ffffff".
func Normalize(color string) (string, error) {
	color = strings.TrimSpace(color)
	if !IsValidHexColor(color) {
		return "", fmt.Errorf("%w: got %q", ErrInvalidHexFormat, color)
	}
	color = strings.ToLower(color)
	if len(color) == 4 {
		color = "#" + strings.Repeat(color[1:2], 2) + strings.Repeat(color[2:3], 2) + strings.Repeat(color[3:4], 2)
	}
	return color, nil
}

// SanitizeOr returns the normalized color, or fallback when color is not a valid hex color.
func SanitizeOr(color, fallback string) string {
	normalized, err := Normalize(color)
	if err != nil {
		return fallback
	}
	return normalized
}

// RGB represents a color in RGB color space with values 0-255.
type RGB struct {
	R, G, B uint8
}

// ParseHexColor parses a hex color string into RGB components.
func ParseHexColor(hexColor string) (RGB, error) {
	normalized, err := Normalize(hexColor)
	if err != nil {
		return RGB{}, err
	}

	v, err := strconv.ParseUint(normalized[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("failed to parse color components: %w", err)
	}

	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// relativeLuminance calculates the relative luminance of an RGB color
// according to WCAG 2.1.
func relativeLuminance(rgb RGB) float64 {
	channel := func(c uint8) float64 {
		s := float64(c) / 255.0
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*channel(rgb.R) + 0.7152*channel(rgb.G) + 0.0722*channel(rgb.B)
}

// ContrastRatio calculates the WCAG contrast ratio between two colors,
// from 1.0 (none) to 21.0 (black on white).
func ContrastRatio(color1, color2 RGB) float64 {
	l1 := relativeLuminance(color1)
	l2 := relativeLuminance(color2)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// ReadableText picks white or near-black text for the given background,
// whichever contrasts more. Invalid backgrounds get white text.
func ReadableText(background string) string {
	const light, dark = "#ffffff", "#0f172a"
	bg, err := ParseHexColor(background)
	if err != nil {
		return light
	}
	white := RGB{255, 255, 255}
	ink := RGB{0x0f, 0x17, 0x2a}
	if ContrastRatio(bg, ink) > ContrastRatio(bg, white) {
		return dark
	}
	return light
}
