package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/lensportal/lensportal-backend/pkg/config"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when SMTP settings are missing.
var ErrNotConfigured = errors.New("smtp is not configured")

// Sender delivers transactional email.
type Sender interface {
	SendPasswordSetup(ctx context.Context, to PasswordSetup) error
}

// PasswordSetup is the content of the welcome email sent after approval.
type PasswordSetup struct {
	Email       string
	CompanyName string
	Link        string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends mail through a single SMTP relay.
type SMTP struct {
	dialer   dialer
	from     string
	fromName string
}

var _ Sender = (*SMTP)(nil)

func NewSMTP(cfg config.SMTPConfig) (*SMTP, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	return &SMTP{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		fromName: cfg.FromName,
	}, nil
}

var passwordSetupTemplate = template.Must(template.New("password_setup").Parse(`<p>Hello {{.CompanyName}},</p>
<p>Your Lens Portal account has been approved. Set your password to sign in:</p>
<p><a href="{{.Link}}">Set your password</a></p>
<p>If you did not request an account you can ignore this email.</p>`))

func (s *SMTP) SendPasswordSetup(ctx context.Context, msg PasswordSetup) error {
	if s == nil || s.dialer == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.Email) == "" || strings.TrimSpace(msg.Link) == "" {
		return fmt.Errorf("password setup email requires recipient and link")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := passwordSetupTemplate.Execute(&html, msg); err != nil {
		return fmt.Errorf("render password setup email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", msg.Email)
	m.SetHeader("Subject", "Your Lens Portal account is ready")
	m.SetBody("text/plain", fmt.Sprintf("Your account has been approved. Set your password here: %s", msg.Link))
	m.AddAlternative("text/html", html.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send password setup email: %w", err)
	}
	return nil
}
