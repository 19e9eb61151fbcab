package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string // e.g., []string{"https", "http"}
	AllowedDomains []string // If non-empty, only these domains are allowed
	BlockPrivate   bool     // Reject loopback and private IP literals
	AllowRelative  bool     // Accept root-relative paths such as /uploads/pano.jpg
	MaxLength      int      // Maximum URL length (0 = no limit)
}

// MediaURLConstraints applies to URLs the viewer loads in the visitor's
// browser: panoramas, icons, floor plans, audio and hotspot links.
var MediaURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	AllowRelative:  true,
	MaxLength:      2048,
}

// CallbackURLConstraints applies to URLs handed to payment gateways.
var CallbackURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   false,
	MaxLength:      2048,
}

// URL validates a URL against the given constraints.
// Returns the validated URL string and an error if validation fails.
func URL(urlStr string, constraints URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)

	if urlStr == "" {
		return "", ErrEmpty
	}

	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, constraints.MaxLength)
	}
	if strings.ContainsAny(urlStr, " \t\r\n\"'<>\\") {
		return "", fmt.Errorf("%w: contains characters that must be encoded", ErrInvalidURL)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if parsedURL.Scheme == "" && parsedURL.Host == "" {
		if constraints.AllowRelative && strings.HasPrefix(urlStr, "/") && !strings.HasPrefix(urlStr, "//") {
			return parsedURL.String(), nil
		}
		return "", fmt.Errorf("%w: URL must be absolute", ErrInvalidURL)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if len(constraints.AllowedSchemes) > 0 {
		schemeAllowed := false
		for _, s := range constraints.AllowedSchemes {
			if scheme == s {
				schemeAllowed = true
				break
			}
		}
		if !schemeAllowed {
			return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, parsedURL.Scheme, constraints.AllowedSchemes)
		}
	}
	parsedURL.Scheme = scheme

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if len(constraints.AllowedDomains) > 0 {
		domainAllowed := false
		for _, domain := range constraints.AllowedDomains {
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				domainAllowed = true
				break
			}
		}
		if !domainAllowed {
			return "", fmt.Errorf("%w: %q not in allowlist", ErrDisallowedDomain, hostname)
		}
	}

	if constraints.BlockPrivate {
		if err := checkPrivateHost(hostname); err != nil {
			return "", err
		}
	}

	return parsedURL.String(), nil
}

// SafeURL returns a cleaned media URL, or "" when raw is not a safe URL.
// Values like javascript: links or malformed hosts are dropped rather than reported.
func SafeURL(raw string) string {
	clean, err := URL(raw, MediaURLConstraints)
	if err != nil {
		return ""
	}
	return clean
}

// checkPrivateHost rejects localhost and private IP literals.
// Hostnames are not resolved.
func checkPrivateHost(hostname string) error {
	lower := strings.ToLower(hostname)
	if lower == "localhost" || lower == "localhost.localdomain" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: localhost not allowed", ErrSSRFRisk)
	}

	if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, ip.String())
	}

	return nil
}

// isPrivateIP checks if an IP address is private, loopback, or link-local.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
