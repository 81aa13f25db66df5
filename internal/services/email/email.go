// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/aura/internal/config"
	"codeberg.org/oliverandrich/aura/internal/i18n"
	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"
)

const (
	// VerificationPath is the frontend route that redeems verification tokens.
	VerificationPath = "/verify-email"
	// ResetPath is the frontend route that redeems password reset tokens.
	ResetPath = "/reset-password"

	defaultBackoff = 500 * time.Millisecond
)

//go:embed templates/*.html
var templateFS embed.FS

var htmlTemplate = template.Must(template.ParseFS(templateFS, "templates/message.html"))

// Sender delivers the account notification mails.
type Sender interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// Dialer delivers prepared messages. *mail.Client satisfies it.
type Dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Service sends notification mails over SMTP.
type Service struct {
	cfg             *config.SMTPConfig
	frontendURL     string
	dialer          Dialer
	backoff         time.Duration
	verificationTTL time.Duration
	resetTTL        time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithDialer replaces the SMTP client.
func WithDialer(d Dialer) Option {
	return func(s *Service) {
		s.dialer = d
	}
}

// WithBackoff sets the base delay between delivery attempts.
func WithBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithTokenLifetimes sets the expiry hints printed in the mails.
func WithTokenLifetimes(verification, reset time.Duration) Option {
	return func(s *Service) {
		if verification > 0 {
			s.verificationTTL = verification
		}
		if reset > 0 {
			s.resetTTL = reset
		}
	}
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, frontendURL string, opts ...Option) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{
		cfg:             cfg,
		frontendURL:     strings.TrimSuffix(frontendURL, "/"),
		backoff:         defaultBackoff,
		verificationTTL: 24 * time.Hour,
		resetTTL:        time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dialer == nil {
		client, err := newClient(cfg)
		if err != nil {
			return nil, err
		}
		s.dialer = client
	}

	return s, nil
}

// VerificationURL returns the link a user follows to confirm their email.
func (s *Service) VerificationURL(token string) string {
	return s.frontendURL + VerificationPath + "?token=" + url.QueryEscape(token)
}

// ResetURL returns the link a user follows to choose a new password.
func (s *Service) ResetURL(token string) string {
	return s.frontendURL + ResetPath + "?token=" + url.QueryEscape(token)
}

// SendVerification sends a verification email with the given token.
func (s *Service) SendVerification(ctx context.Context, to, name, token string) error {
	link := s.VerificationURL(token)
	data := map[string]any{
		"Name":  name,
		"URL":   link,
		"Hours": int(s.verificationTTL.Hours()),
	}

	return s.send(ctx, to, content{
		Subject: i18n.T(ctx, "email_verification_subject"),
		Heading: i18n.T(ctx, "email_verification_heading"),
		Body:    i18n.TData(ctx, "email_verification_body", data),
		Button:  i18n.T(ctx, "email_verification_button"),
		Hint:    i18n.T(ctx, "email_link_hint"),
		URL:     link,
	})
}

// SendPasswordReset sends a password reset email with the given token.
func (s *Service) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := s.ResetURL(token)
	data := map[string]any{
		"Name":    name,
		"URL":     link,
		"Minutes": int(s.resetTTL.Minutes()),
	}

	return s.send(ctx, to, content{
		Subject: i18n.T(ctx, "email_reset_subject"),
		Heading: i18n.T(ctx, "email_reset_heading"),
		Body:    i18n.TData(ctx, "email_reset_body", data),
		Button:  i18n.T(ctx, "email_reset_button"),
		Hint:    i18n.T(ctx, "email_link_hint"),
		URL:     link,
	})
}

type content struct {
	Subject string
	Heading string
	Body    string
	Button  string
	Hint    string
	URL     string
}

// Paragraphs splits the plain text body for the HTML alternative.
func (c content) Paragraphs() []string {
	return strings.Split(c.Body, "\n\n")
}

// send builds the message and delivers it, retrying transient failures.
func (s *Service) send(ctx context.Context, to string, c content) error {
	msg, err := s.buildMessage(to, c)
	if err != nil {
		return err
	}

	attempts := 0
	backoff := retry.WithMaxRetries(uint64(max(s.cfg.MaxRetries, 0)), retry.NewExponential(s.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := s.dialer.DialAndSendWithContext(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Warn("email_attempt_failed", "to", to, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	slog.Info("email_sent", "to", to, "attempts", attempts)
	return nil
}

func (s *Service) buildMessage(to string, c content) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(c.Subject)
	msg.SetBodyString(mail.TypeTextPlain, c.Body)
	if err := msg.AddAlternativeHTMLTemplate(htmlTemplate, c); err != nil {
		return nil, fmt.Errorf("rendering html body: %w", err)
	}

	return msg, nil
}

func newClient(cfg *config.SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	// Configure TLS based on config and port
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mail client: %w", err)
	}
	return client, nil
}
