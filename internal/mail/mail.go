// Package mail delivers license emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("mail: message has no recipient")

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LicenseMessage builds the email sent after a paid checkout issues a key.
func LicenseMessage(to, key, plan string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your PhantomViews %s License", capitalize(plan)),
		Body: fmt.Sprintf("Thank you for subscribing to PhantomViews Pro (%s). Your license key is: %s", plan, key) +
			"\r\n\r\nAdd this key under PhantomViews → Licensing to unlock premium features.",
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends messages via SMTP.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for the given server.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Password != "" {
		user := s.cfg.Username
		if user == "" {
			user = s.cfg.From
		}
		auth = smtp.PlainAuth("", user, s.cfg.Password, s.cfg.Host)
	}

	if err := s.sendMail(addr, auth, s.cfg.From, []string{msg.To}, s.format(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", addr, err)
	}
	return nil
}

func (s *SMTPSender) format(msg Message) []byte {
	// Header values must not carry line breaks.
	clean := strings.NewReplacer("\r", "", "\n", "")
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		clean.Replace(s.cfg.From), clean.Replace(msg.To), clean.Replace(msg.Subject), msg.Body))
}

// LogSender writes messages to the log instead of delivering them.
// Used in development when no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	s.logger.InfoContext(ctx, "email not sent, smtp disabled",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}
