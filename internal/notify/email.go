package notify

import (
	"bytes"
	"context"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds what the SMTP mailer needs to connect and send
type SMTPConfig struct {
	Host     string
	Port     int
	UseTLS   bool
	Username string
	Password string
	Sender   string
	Timeout  time.Duration
}

// SMTPMailer sends Email messages over SMTP
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer. The sender is checked on each send.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one email. A missing sender is a ConfigurationError;
// anything failing after that is a TransientDeliveryError.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if m.cfg.Sender == "" {
		return &ConfigurationError{Channel: ChannelEmail, Reason: "default sender address is not set"}
	}
	if m.cfg.Host == "" {
		return &ConfigurationError{Channel: ChannelEmail, Reason: "smtp server is not set"}
	}

	msg, err := m.build(email)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return &ConfigurationError{Channel: ChannelEmail, Reason: err.Error()}
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return transient(ChannelEmail, "send to %s: %w", email.To, err)
	}
	return nil
}

func (m *SMTPMailer) build(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Sender); err != nil {
		return nil, &ConfigurationError{Channel: ChannelEmail, Reason: "invalid sender address: " + err.Error()}
	}
	if err := msg.To(email.To); err != nil {
		return nil, transient(ChannelEmail, "invalid recipient %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)

	for _, a := range email.Attachments {
		err := msg.AttachReader(a.Name, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType)))
		if err != nil {
			return nil, transient(ChannelEmail, "attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}
	if m.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}
