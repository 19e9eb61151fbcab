package idempotency

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", nil},
		{"max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty", "", ErrInvalidKey},
		{"whitespace", "abc def", ErrInvalidKey},
		{"newline", "abc\n", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestDeliveryKey(t *testing.T) {
	if got := DeliveryKey("paystack", "T123"); got != "delivery:paystack:T123" {
		t.Errorf("DeliveryKey() = %q", got)
	}
}

func TestComputeResponseHash(t *testing.T) {
	a := ComputeResponseHash(`{"authorization_url":"https://x"}`)
	b := ComputeResponseHash(`{"authorization_url":"https://x"}`)
	c := ComputeResponseHash(`{"authorization_url":"https://y"}`)

	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a != b {
		t.Error("hash should be deterministic")
	}
	if a == c {
		t.Error("different bodies should hash differently")
	}
}
