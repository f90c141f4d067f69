package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

type Attachment struct {
	Name string
	Data []byte
}

// Mailer transmits the run log. When no SMTP host or recipients are
// configured a noop implementation is returned, so callers never branch.
type Mailer interface {
	Send(ctx context.Context, subject, body string, attachments []Attachment) error
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func NewMailer(cfg MailConfig) Mailer {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return noopMailer{}
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &smtpMailer{cfg: cfg}
}

type smtpMailer struct {
	cfg MailConfig
}

func (m *smtpMailer) Send(ctx context.Context, subject, body string, attachments []Attachment) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	for _, a := range attachments {
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, []Attachment) error { return nil }
