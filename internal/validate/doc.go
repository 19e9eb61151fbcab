// Package validate provides input validation and sanitization for tour content,
// checkout forms and gateway payloads. Sanitizers never fail: they return a
// cleaned value or the empty string, so untrusted editor input can always be stored.
package validate
