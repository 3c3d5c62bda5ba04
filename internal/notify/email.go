package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"ms-sorteos/internal/config"
	"ms-sorteos/internal/logger"
)

type Attachment struct {
	Name string
	Data []byte
}

type Email struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer delivers email through the configured SMTP relay.
type SMTPMailer struct {
	cfg    config.EmailConfig
	logger *logger.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, log *logger.Logger) *SMTPMailer {
	if log == nil {
		log = logger.Discard()
	}
	return &SMTPMailer{cfg: cfg, logger: log}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if !m.cfg.Enabled {
		m.logger.Debug("EMAIL", fmt.Sprintf("SMTP disabled, dropping %q to %s", email.Subject, email.To))
		return nil
	}

	msg, err := buildMessage(m.cfg.From, email)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUsername),
			mail.WithPassword(m.cfg.SMTPPassword),
		)
	}
	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error("EMAIL", fmt.Sprintf("Failed to send %q to %s: %v", email.Subject, email.To, err))
		return fmt.Errorf("send email to %s: %w", email.To, err)
	}
	m.logger.Info("EMAIL", fmt.Sprintf("Sent %q to %s", email.Subject, email.To))
	return nil
}

func buildMessage(from string, email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	if email.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	}
	for _, a := range email.Attachments {
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}
