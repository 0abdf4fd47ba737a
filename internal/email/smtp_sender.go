package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const waitlistSubject = "You're on the ThinkTact waitlist"

// SMTPSender manda la confirmación de la waitlist por SMTP.
// Con useTLS usa TLS implícito (puerto 465); si no, SendMail con STARTTLS si el server lo ofrece.
type SMTPSender struct {
	addr   string
	host   string
	auth   smtp.Auth
	from   mail.Address
	useTLS bool
	now    func() time.Time
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	s := &SMTPSender{
		addr:   net.JoinHostPort(host, strconv.Itoa(port)),
		host:   host,
		from:   mail.Address{Name: strings.TrimSpace(fromName), Address: strings.TrimSpace(from)},
		useTLS: useTLS,
		now:    time.Now,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s, nil
}

func (s *SMTPSender) SendWaitlistConfirmation(_ context.Context, toEmail, job string) error {
	to := strings.TrimSpace(toEmail)
	if to == "" {
		return fmt.Errorf("to email is required")
	}
	msg := s.waitlistMessage(to, job)
	if s.useTLS {
		return s.sendImplicitTLS(to, msg)
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from.Address, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) waitlistMessage(to, job string) []byte {
	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("From", s.from.String())
	header("To", to)
	header("Subject", waitlistSubject)
	header("Date", s.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(waitlistBody(job))
	return []byte(b.String())
}

func (s *SMTPSender) sendImplicitTLS(to string, msg []byte) error {
	conn, err := tls.Dial("tcp", s.addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func waitlistBody(job string) string {
	var b strings.Builder
	b.WriteString("Thanks for joining the ThinkTact waitlist.\n\n")
	if j := strings.TrimSpace(job); j != "" {
		fmt.Fprintf(&b, "We'll reach out with early access for %s professionals.\n", j)
	} else {
		b.WriteString("We'll reach out as soon as early access opens.\n")
	}
	b.WriteString("\nThe ThinkTact team\n")
	return b.String()
}
