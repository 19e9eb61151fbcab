// Package idempotency records which requests and gateway deliveries have
// already been handled, so retries replay instead of repeating side effects.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Status values for a record.
//
// StatusProcessing marks a key claimed by an in-flight handler; a second
// claim on it fails until the first completes or releases it.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to create a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty or contains whitespace.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 128 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
// Gateway references are prefixed with the gateway name, hence the headroom.
const MaxKeyLength = 128

// Record is a stored idempotency key with its cached outcome.
type Record struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	CreatedAt          time.Time `json:"created_at"`
	Status             string    `json:"status"`
	ResponseHash       string    `json:"response_hash,omitempty"`
	ResponseBody       string    `json:"response_body,omitempty"`
	ResponseStatusCode int       `json:"response_status_code,omitempty"`
}

// ValidateKey checks if an idempotency key is usable.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n") {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// DeliveryKey builds the ledger key for a gateway delivery reference.
func DeliveryKey(gateway, reference string) string {
	return "delivery:" + gateway + ":" + reference
}

// ComputeResponseHash computes a SHA256 hash of the response body.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository defines methods for idempotency record persistence.
type Repository interface {
	// Get retrieves a record by key. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, key string) (*Record, error)

	// Store saves a completed record. Returns ErrKeyExists if the key is taken,
	// unless the existing record is still processing, in which case it is completed.
	Store(ctx context.Context, record *Record) error

	// Claim atomically marks key as processing. It returns false when the
	// key is already claimed or completed.
	Claim(ctx context.Context, key, route string) (bool, error)

	// Release drops a processing claim so the work can be retried.
	Release(ctx context.Context, key string) error

	// DeleteOlderThan removes records older than the given age.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
