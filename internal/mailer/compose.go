package mailer

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is a composed notification before MIME encoding.
type Message struct {
	From     string
	FromName string
	To       []string
	Subject  string
	Date     time.Time
	Text     string
	HTML     string
}

// Compose writes msg as a multipart/alternative MIME message with a plain
// text part followed by an HTML part.
func Compose(w io.Writer, msg Message) error {
	var h mail.Header
	h.SetDate(msg.Date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: msg.From}})

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("generating message id: %w", err)
	}

	iw, err := mail.CreateInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message: %w", err)
	}

	if err := writePart(iw, "text/plain", msg.Text); err != nil {
		return err
	}
	if msg.HTML != "" {
		if err := writePart(iw, "text/html", msg.HTML); err != nil {
			return err
		}
	}
	return iw.Close()
}

func writePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}
