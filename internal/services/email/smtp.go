package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"experimenter/internal/config"
	"experimenter/internal/services"
)

const defaultDialTimeout = 30 * time.Second

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	now      func() time.Time
}

// NewSMTPMailer builds a mailer from the [email] section of cfg.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     strings.TrimSpace(cfg.Email.Host),
		port:     cfg.Email.Port,
		username: cfg.Email.Username,
		password: cfg.Email.Password,
		useTLS:   cfg.Email.UseTLS,
		now:      time.Now,
	}
}

// Send delivers msg. Failures are classified as external errors.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.host == "" {
		return services.Wrap(services.ErrValidation, "email", "send", "email host is not configured", nil)
	}
	if len(msg.To) == 0 {
		return services.Wrap(services.ErrValidation, "email", "send", "message has no recipients", nil)
	}
	if err := m.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrExternal, "email", "send", msg.Subject, err)
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if m.useTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return errors.New("server does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg.Bytes(m.now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish data: %w", err)
	}
	return client.Quit()
}
