package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"tigro/internal/config"
)

// Notifier composes digests and hands them to a Sender.
type Notifier struct {
	cfg    config.EmailConfig
	sender Sender
	log    *slog.Logger
	now    func() time.Time
}

// NewNotifier creates a Notifier. A nil sender uses SMTP with cfg's settings.
func NewNotifier(cfg config.EmailConfig, sender Sender, log *slog.Logger) *Notifier {
	if sender == nil {
		sender = &SMTPSender{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			UseTLS:   cfg.UseTLS,
		}
	}
	return &Notifier{cfg: cfg, sender: sender, log: log, now: time.Now}
}

// Notify sends d to the configured recipients.
func (n *Notifier) Notify(ctx context.Context, d Digest) error {
	body, err := d.HTML()
	if err != nil {
		return err
	}
	msg := Message{
		From:     n.cfg.From,
		FromName: n.cfg.FromName,
		To:       n.cfg.To,
		Subject:  d.Subject(n.cfg.Subject),
		Date:     n.now(),
		Text:     d.Markdown(),
		HTML:     body,
	}

	var buf bytes.Buffer
	if err := Compose(&buf, msg); err != nil {
		return err
	}
	if err := n.sender.Send(ctx, n.cfg.From, n.cfg.To, buf.Bytes()); err != nil {
		return fmt.Errorf("sending digest: %w", err)
	}

	n.log.Info("digest sent", "recipients", len(n.cfg.To), "alerts", len(d.Alerts), "subject", msg.Subject)
	return nil
}
