package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"crono-backend/pkg/config"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const defaultCommandTimeout = 30 * time.Second

// Sender delivers HTML mail through one SMTP submission server
type Sender struct {
	cfg  config.SMTPConfig
	from *mail.Address
}

// NewSender parses the From address up front so misconfiguration fails at boot
func NewSender(cfg config.SMTPConfig) (*Sender, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse EMAIL_FROM %q: %w", cfg.From, err)
	}
	return &Sender{cfg: cfg, from: from}, nil
}

// Compose renders a single-part HTML message
func (s *Sender) Compose(to, subject, html string, now time.Time) ([]byte, error) {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("parse recipient %q: %w", to, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{s.from})
	h.SetAddressList("To", []*mail.Address{rcpt})
	h.SetSubject(subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, html); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Send composes and submits one message and returns its Message-Id.
// The context deadline bounds every SMTP command.
func (s *Sender) Send(ctx context.Context, to, subject, html string) (string, error) {
	msg, err := s.Compose(to, subject, html, time.Now())
	if err != nil {
		return "", err
	}

	c, err := s.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("dial smtp %s: %w", s.cfg.Host, err)
	}
	defer c.Close()

	timeout := defaultCommandTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	c.CommandTimeout = timeout
	c.SubmissionTimeout = timeout

	if err := c.Auth(sasl.NewPlainClient("", s.cfg.User, s.cfg.Pass)); err != nil {
		return "", fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.SendMail(s.from.Address, []string{mustAddress(to)}, bytes.NewReader(msg)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	if err := c.Quit(); err != nil {
		return "", fmt.Errorf("smtp quit: %w", err)
	}
	return messageID(msg), nil
}

func (s *Sender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	dialer := &net.Dialer{Timeout: defaultCommandTimeout}
	if s.cfg.ImplicitTLS() {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn), nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return smtp.NewClientStartTLS(conn, tlsConfig)
}

func mustAddress(to string) string {
	if a, err := mail.ParseAddress(to); err == nil {
		return a.Address
	}
	return to
}

// messageID pulls the header back out of a composed message
func messageID(msg []byte) string {
	r, err := mail.CreateReader(bytes.NewReader(msg))
	if err != nil {
		return ""
	}
	id, _ := r.Header.MessageID()
	return id
}
