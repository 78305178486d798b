package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/digest"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// SMTPSender sends emails via SMTP
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// BuildMessage assembles a multipart/alternative MIME message.
func BuildMessage(from, to, subject, htmlBody, plainBody string) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=\"sharpwatch-alt\"\r\n\r\n")

	msg.WriteString("--sharpwatch-alt\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(plainBody)
	msg.WriteString("\r\n")

	msg.WriteString("--sharpwatch-alt\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n")

	msg.WriteString("--sharpwatch-alt--\r\n")
	return []byte(msg.String())
}

// Send sends an email via SMTP
func (s *SMTPSender) Send(to, subject, htmlBody, plainBody string) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, BuildMessage(s.from, to, subject, htmlBody, plainBody)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Mailer is the raw email transport.
type Mailer interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// EmailSender renders each alert as a digest and mails it.
type EmailSender struct {
	mailer  Mailer
	to      string
	builder *digest.Builder
	now     func() time.Time
}

func NewEmailSender(m Mailer, to string) (*EmailSender, error) {
	b, err := digest.New(10)
	if err != nil {
		return nil, err
	}
	return &EmailSender{mailer: m, to: to, builder: b, now: time.Now}, nil
}

func (e *EmailSender) Name() string { return "email" }

func (e *EmailSender) Send(ctx context.Context, a types.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := e.builder.Build([]types.Alert{a}, e.now())
	if err != nil {
		return err
	}
	return e.mailer.Send(e.to, d.Subject, d.HTMLBody, d.PlainBody)
}
