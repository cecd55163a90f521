// Package notify sends the one-time admin notification for new signups.
package notify

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// ErrMailNotConfigured indicates SMTP settings are absent.
var ErrMailNotConfigured = errors.New("smtp not configured")

// Mailer delivers email. Satisfied by SMTPMailer in production and by
// fakes in tests.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail over authenticated SMTP submission.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer creates a Mailer for the given relay.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send submits one plain-text message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	if m.host == "" || m.from == "" {
		return ErrMailNotConfigured
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}
