package health

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPChecker checks that the mail server for license emails accepts connections.
type SMTPChecker struct {
	host    string
	port    int
	timeout time.Duration
}

// NewSMTPChecker creates a checker for host:port.
func NewSMTPChecker(host string, port int) *SMTPChecker {
	return &SMTPChecker{host: host, port: port, timeout: 3 * time.Second}
}

// HealthCheck connects, waits for the server greeting and quits.
func (s *SMTPChecker) HealthCheck(ctx context.Context) error {
	if s.host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("failed to reach smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp server unhealthy: %w", err)
	}
	defer c.Close()
	return c.Quit()
}
