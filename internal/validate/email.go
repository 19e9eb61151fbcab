package validate

import (
	"errors"
	"regexp"
	"strings"
)

// Email validation errors
var (
	ErrInvalidEmail = errors.New("invalid email format")
)

// emailPattern covers the addresses gateways and account directories hand us.
// Deliverability is the mail server's problem.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an email address format.
// Returns the normalized (lowercased, trimmed) email and an error if invalid.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return "", ErrEmpty
	}

	// RFC 5321 limits
	if len(email) > 254 {
		return "", ErrStringTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	localPart, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "", ErrInvalidEmail
	}
	if len(localPart) > 64 {
		return "", ErrStringTooLong
	}

	return email, nil
}

// SanitizeEmail returns the normalized address, or "" when it is not a valid email.
func SanitizeEmail(email string) string {
	normalized, err := Email(email)
	if err != nil {
		return ""
	}
	return normalized
}
