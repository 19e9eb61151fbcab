package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestBus_PublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	fixed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	var got []Event
	unsubscribe := bus.Subscribe(func(_ context.Context, e Event) {
		got = append(got, e)
	})
	var second int
	bus.Subscribe(func(context.Context, Event) { second++ })

	bus.Publish(context.Background(), Event{Type: LicenseActivated, Data: map[string]any{"plan": "yearly"}})
	unsubscribe()
	bus.Publish(context.Background(), Event{Type: LicenseDeactivated})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Type != LicenseActivated || !got[0].At.Equal(fixed) {
		t.Errorf("unexpected event %+v", got[0])
	}
	if second != 2 {
		t.Errorf("remaining subscriber saw %d events, want 2", second)
	}
}

func TestBus_KeepsExplicitTimestamp(t *testing.T) {
	bus := NewBus()
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var seen time.Time
	bus.Subscribe(func(_ context.Context, e Event) { seen = e.At })
	bus.Publish(context.Background(), Event{Type: LicenseExpired, At: at})
	if !seen.Equal(at) {
		t.Errorf("At = %v, want %v", seen, at)
	}
}

func TestLogHandler_OmitsSecrets(t *testing.T) {
	buf := &bytes.Buffer{}
	h := LogHandler(slog.New(slog.NewTextHandler(buf, nil)))
	h(context.Background(), Event{Type: LicenseIssued, Data: map[string]any{
		"license_key": "ABCDEFGH12345678",
		"email":       "payer@example.com",
		"gateway":     "paystack",
	}})

	out := buf.String()
	for _, secret := range []string{"ABCDEFGH12345678", "payer@example.com", "email="} {
		if strings.Contains(out, secret) {
			t.Errorf("%q leaked into log: %s", secret, out)
		}
	}
	if !strings.Contains(out, "gateway=paystack") || !strings.Contains(out, "event=license.issued") {
		t.Errorf("missing fields in log: %s", out)
	}
}

func TestRedact(t *testing.T) {
	orig := Event{Type: LicenseIssued, Data: map[string]any{"license_key": "ABCDEFGH12345678"}}
	r := redact(orig)
	if r.Data["license_key"] != "****5678" {
		t.Errorf("redacted key = %v", r.Data["license_key"])
	}
	if orig.Data["license_key"] != "ABCDEFGH12345678" {
		t.Error("redact must not modify the original event")
	}
	if redact(Event{Data: map[string]any{"license_key": "AB"}}).Data["license_key"] != "****" {
		t.Error("short keys should be fully masked")
	}
}
