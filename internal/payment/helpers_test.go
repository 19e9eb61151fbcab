package payment

import (
	"context"
	"net/http"
	"sync"

	"github.com/umarmf343/PhantomViews/internal/mail"
)

// fakeGateway is a Gateway whose behavior is set per test.
type fakeGateway struct {
	name       string
	configured bool
	url        string
	err        error
	verifyErr  error
	note       Notification
	parseErr   error

	mu       sync.Mutex
	requests []CheckoutRequest
}

func (g *fakeGateway) Name() string     { return g.name }
func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) Initialize(_ context.Context, req CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.url, g.err
}

func (g *fakeGateway) Verify([]byte, http.Header) error { return g.verifyErr }

func (g *fakeGateway) Parse([]byte) (Notification, error) { return g.note, g.parseErr }

// recordingSender keeps every message it is asked to send.
type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
