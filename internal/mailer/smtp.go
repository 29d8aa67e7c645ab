package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Sender delivers an encoded message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Compile-time interface check.
var _ Sender = (*SMTPSender)(nil)

// SMTPSender sends mail through an authenticated SMTP relay. With UseTLS it
// connects over implicit TLS and falls back to STARTTLS when the TLS dial
// fails; otherwise it upgrades with STARTTLS when the server offers it.
type SMTPSender struct {
	Host      string
	Port      int
	Username  string
	Password  string
	UseTLS    bool
	Timeout   time.Duration
	TLSConfig *tls.Config // optional; ServerName defaults to Host
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	if s.TLSConfig != nil {
		return s.TLSConfig
	}
	return &tls.Config{ServerName: s.Host}
}

func (s *SMTPSender) auth() smtp.Auth {
	if s.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", s.Username, s.Password, s.Host)
}

func (s *SMTPSender) dialContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	if s.UseTLS {
		return s.sendWithTLS(ctx, from, to, msg)
	}
	return s.sendWithSTARTTLS(ctx, from, to, msg)
}

func (s *SMTPSender) sendWithTLS(ctx context.Context, from string, to []string, msg []byte) error {
	dctx, cancel := s.dialContext(ctx)
	defer cancel()

	d := &tls.Dialer{Config: s.tlsConfig()}
	conn, err := d.DialContext(dctx, "tcp", s.addr())
	if err != nil {
		// Fallback to STARTTLS if direct TLS fails.
		return s.sendWithSTARTTLS(ctx, from, to, msg)
	}
	defer conn.Close()
	if deadline, ok := dctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	return s.deliver(client, from, to, msg)
}

func (s *SMTPSender) sendWithSTARTTLS(ctx context.Context, from string, to []string, msg []byte) error {
	dctx, cancel := s.dialContext(ctx)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", s.addr())
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := dctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}
	return s.deliver(client, from, to, msg)
}

func (s *SMTPSender) deliver(client *smtp.Client, from string, to []string, msg []byte) error {
	if auth := s.auth(); auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("setting mail from: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("setting recipient %s: %w", addr, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("starting data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data writer: %w", err)
	}
	return client.Quit()
}
