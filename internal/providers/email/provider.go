// Package email delivers invitation notifications. Delivery is best effort:
// callers treat a failed send as a logged warning, never as a failed command.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/docuspace/docuspace/internal/config"
	"go.uber.org/zap"
)

// Message is a rendered outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Provider sends transactional email.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NewFromConfig returns the SMTP provider when a host is configured and the
// no-op provider otherwise, so local development needs no mail server.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if strings.TrimSpace(cfg.Email.SMTPHost) == "" {
		return NewNoOpProvider(log)
	}
	return NewSMTPProvider(cfg.Email)
}

type smtpProvider struct {
	cfg config.EmailConfig
}

func NewSMTPProvider(cfg config.EmailConfig) Provider {
	return &smtpProvider{cfg: cfg}
}

// Send delivers the message within the caller's deadline. smtp.SendMail has
// no context support, so it runs in a goroutine and the slow transport is
// abandoned when the context expires.
func (p *smtpProvider) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)
	var auth smtp.Auth
	if p.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", p.cfg.SMTPUsername, p.cfg.SMTPPassword, p.cfg.SMTPHost)
	}

	payload := strings.Join([]string{
		"From: " + p.cfg.SMTPFrom,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.Body,
	}, "\r\n")

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, p.cfg.SMTPFrom, []string{msg.To}, []byte(payload))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type noopProvider struct {
	log *zap.Logger
}

// NewNoOpProvider logs the message instead of delivering it.
func NewNoOpProvider(log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &noopProvider{log: log.Named("email")}
}

func (p *noopProvider) Send(_ context.Context, msg Message) error {
	p.log.Info("email suppressed",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
