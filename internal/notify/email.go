package notify

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPEmailSender delivers notifications through a transactional SMTP relay.
type SMTPEmailSender struct {
	host     string
	port     string
	username string
	password string
	sender   string
}

// NewSMTPEmailSender builds an email sender from provider credentials.
// Host and sender address are required; auth is optional for relays that
// restrict by network instead.
func NewSMTPEmailSender(host, port, username, password, sender string) (*SMTPEmailSender, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	if sender == "" {
		return nil, fmt.Errorf("smtp sender address not configured")
	}
	return &SMTPEmailSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		sender:   sender,
	}, nil
}

// Send delivers one HTML email. The context is honored as a pre-send check;
// the SMTP dial itself is bounded by the dispatcher's timeout.
func (s *SMTPEmailSender) Send(ctx context.Context, to string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" && s.password != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	body := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", s.sender, to, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTML,
	)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.sender, []string{to}, body); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", addr, err)
	}
	return nil
}
