package mailer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigro/internal/config"
	"tigro/internal/domain"
	"tigro/internal/trend"
)

var asOf = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func snapshot() *domain.Snapshot {
	return &domain.Snapshot{
		ID:   "20260310T180000Z",
		AsOf: asOf,
		Rows: []domain.SnapshotRow{
			{Ticker: "AAPL", Company: "Apple Inc.", MeanScore: 0.30, ArticleCount: 4},
			{Ticker: "MSFT", Company: "Microsoft", MeanScore: 0.10, ArticleCount: 3},
			{Ticker: "TSLA", Company: "Tesla | Motors", MeanScore: -0.05, ArticleCount: 2},
			{Ticker: "XOM", Company: "Exxon", MeanScore: -0.40, ArticleCount: 5},
			{Ticker: "QUIET", Company: "Quiet Corp"},
		},
	}
}

func TestBuildDigestFromTrends(t *testing.T) {
	snap := snapshot()
	base := &domain.Snapshot{ID: "old", AsOf: asOf.AddDate(0, 0, -7)}
	hist := map[string]domain.SnapshotRow{
		"AAPL": {Ticker: "AAPL", MeanScore: 0.20, ArticleCount: 1},
		"MSFT": {Ticker: "MSFT", MeanScore: 0.20, ArticleCount: 1},
		"TSLA": {Ticker: "TSLA", MeanScore: 0, ArticleCount: 1},
		"XOM":  {Ticker: "XOM", MeanScore: -0.20, ArticleCount: 1},
	}
	w := &trend.Window{
		Days:     7,
		Baseline: base,
		Records:  trend.Compute(snap.ByTicker(), hist, 7, trend.DefaultConfig(), slog.Default()),
	}

	d := BuildDigest(snap, w, 2, -0.1)

	assert.True(t, d.FromTrends)
	assert.Equal(t, 7, d.Window)
	require.Len(t, d.Alerts, 2)
	// XOM -100% and MSFT -50% lead; TSLA's zero-baseline drop is cut by topN.
	assert.Equal(t, "XOM", d.Alerts[0].Ticker)
	assert.InDelta(t, -1.0, d.Alerts[0].Change, 1e-9)
	assert.Equal(t, 5, d.Alerts[0].Articles)
	assert.Equal(t, "MSFT", d.Alerts[1].Ticker)

	assert.Equal(t, 5, d.Stats.Tickers)
	assert.Equal(t, 4, d.Stats.WithData)
	assert.Equal(t, 1, d.Stats.Up)
	assert.Equal(t, 3, d.Stats.Down)
	assert.Equal(t, 1, d.Stats.Positive)
	assert.Equal(t, 1, d.Stats.Negative)
	assert.InDelta(t, (0.30+0.10-0.05-0.40)/4, d.Stats.Average, 1e-9)
}

func TestBuildDigestFallback(t *testing.T) {
	d := BuildDigest(snapshot(), &trend.Window{Days: 7}, 5, -0.1)

	assert.False(t, d.FromTrends)
	require.Len(t, d.Alerts, 1, "only scores below -0.1 are flagged")
	assert.Equal(t, "XOM", d.Alerts[0].Ticker)
	assert.False(t, d.Alerts[0].HasChange)
	assert.Zero(t, d.Stats.Up, "score levels are not trends")
	assert.Zero(t, d.Stats.Down, "score levels are not trends")
	assert.Equal(t, 1, d.Stats.Positive)
	assert.Equal(t, 1, d.Stats.Negative)
	assert.Contains(t, d.Markdown(), "| 5 | 4 | - | - | 1 | 1 |")

	cfg := config.Default().Email
	cfg.NegativeCutoff = -0.03
	loose := BuildDigest(snapshot(), &trend.Window{Days: 7}, 5, cfg.NegativeCutoff)
	require.Len(t, loose.Alerts, 2)
	assert.Equal(t, "XOM", loose.Alerts[0].Ticker)
	assert.Equal(t, "TSLA", loose.Alerts[1].Ticker)
	assert.Equal(t, 2, loose.Stats.Positive)
	assert.Equal(t, 2, loose.Stats.Negative)
	assert.Contains(t, loose.Markdown(), "below -0.03")

	none := BuildDigest(&domain.Snapshot{AsOf: asOf}, nil, 5, -0.1)
	assert.Empty(t, none.Alerts)
	assert.False(t, none.Stats.HasAverage)
	assert.Equal(t, "No data", none.Stats.Mood())
}

func TestSubject(t *testing.T) {
	d := Digest{AsOf: asOf}
	assert.Equal(t, "Report - March 10, 2026 - All Clear", d.Subject("Report"))
	d.Alerts = []Alert{{Ticker: "XOM"}}
	assert.Equal(t, "Report - March 10, 2026 - 1 Declining Stock", d.Subject("Report"))
	d.Alerts = append(d.Alerts, Alert{Ticker: "MSFT"})
	assert.Equal(t, "Report - March 10, 2026 - 2 Declining Stocks", d.Subject("Report"))
}

func TestMarkdownAndHTML(t *testing.T) {
	d := BuildDigest(snapshot(), nil, 5, -0.1)
	d.Alerts = append(d.Alerts, Alert{Ticker: "TSLA", Company: "Tesla | Motors", Current: -0.05, Change: -0.25, HasChange: true})
	d.Dashboard = "file:///srv/tigro/dashboard/index.html"

	md := d.Markdown()
	assert.Contains(t, md, "# Sentiment Report: March 10, 2026")
	assert.Contains(t, md, "| XOM | Exxon | -0.400 | - | 5 |")
	assert.Contains(t, md, `Tesla \| Motors`)
	assert.Contains(t, md, "-25.0%")
	assert.Contains(t, md, "Full dashboard:")

	body, err := d.HTML()
	require.NoError(t, err)
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "<td>XOM</td>")
	assert.NotContains(t, body, "| XOM |")
}

func TestComposeMultipartAlternative(t *testing.T) {
	var buf bytes.Buffer
	err := Compose(&buf, Message{
		From:     "bot@example.com",
		FromName: "Tigro",
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "Report - All Clear",
		Date:     asOf,
		Text:     "plain body",
		HTML:     "<p>html body</p>",
	})
	require.NoError(t, err)

	r, err := mail.CreateReader(&buf)
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Report - All Clear", subject)

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	assert.Len(t, to, 2)

	ct, _, err := r.Header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", ct)

	var types, bodies []string
	for {
		p, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, _, _ := h.ContentType()
		types = append(types, ct)
		b, _ := io.ReadAll(p.Body)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, []string{"plain body", "<p>html body</p>"}, bodies)
}

// ---------------------------------------------------------------------------
// Notifier
// ---------------------------------------------------------------------------

type captureSender struct {
	from string
	to   []string
	msg  []byte
	err  error
}

func (c *captureSender) Send(_ context.Context, from string, to []string, msg []byte) error {
	c.from, c.to, c.msg = from, to, msg
	return c.err
}

func emailConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled: true,
		From:    "bot@example.com",
		To:      []string{"ops@example.com"},
		Subject: "Daily Sentiment Report",
		TopN:    5,
	}
}

func TestNotifierSends(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier(emailConfig(), s, slog.Default())

	require.NoError(t, n.Notify(context.Background(), BuildDigest(snapshot(), nil, 5, -0.1)))
	assert.Equal(t, "bot@example.com", s.from)
	assert.Equal(t, []string{"ops@example.com"}, s.to)
	assert.Contains(t, string(s.msg), "Subject: Daily Sentiment Report - March 10, 2026 - 1 Declining Stock")
}

func TestNotifierPropagatesSendError(t *testing.T) {
	s := &captureSender{err: errors.New("relay refused")}
	n := NewNotifier(emailConfig(), s, slog.Default())

	err := n.Notify(context.Background(), BuildDigest(snapshot(), nil, 5, -0.1))
	assert.ErrorContains(t, err, "relay refused")
}

// ---------------------------------------------------------------------------
// SMTP
// ---------------------------------------------------------------------------

// fakeSMTP accepts one plain-text session and records the DATA payload.
func fakeSMTP(t *testing.T) (addr string, got <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP test")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch cmd {
			case "EHLO", "HELO":
				tp.PrintfLine("250-localhost")
				tp.PrintfLine("250 8BITMIME")
			case "MAIL", "RCPT", "RSET", "NOOP":
				tp.PrintfLine("250 OK")
			case "DATA":
				tp.PrintfLine("354 go ahead")
				data, err := io.ReadAll(tp.DotReader())
				if err != nil {
					return
				}
				ch <- string(data)
				tp.PrintfLine("250 queued")
			case "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), ch
}

func TestSMTPSenderPlain(t *testing.T) {
	addr, got := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	s := &SMTPSender{Host: host, Port: p, Timeout: 5 * time.Second}
	err = s.Send(context.Background(), "bot@example.com", []string{"ops@example.com"}, []byte("Subject: hi\r\n\r\nhello\r\n"))
	require.NoError(t, err)

	select {
	case data := <-got:
		sc := bufio.NewScanner(strings.NewReader(data))
		var lines []string
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		assert.Equal(t, []string{"Subject: hi", "", "hello"}, lines)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received DATA")
	}
}

func TestSMTPSenderNoRecipients(t *testing.T) {
	s := &SMTPSender{Host: "127.0.0.1", Port: 1}
	assert.Error(t, s.Send(context.Background(), "a@example.com", nil, nil))
}
