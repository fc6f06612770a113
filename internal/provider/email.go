package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

const defaultSMTPTimeout = 10 * time.Second

// EmailRenderer resolves an email template into text and HTML bodies.
type EmailRenderer interface {
	Render(name string, data map[string]any) (textBody string, htmlBody string, err error)
}

// SMTPConfig carries the SMTP transport settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	UseTLS    bool
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SMTPChannel delivers email notifications over SMTP with STARTTLS and an
// optional HTML alternative part.
type SMTPChannel struct {
	cfg      SMTPConfig
	renderer EmailRenderer
}

func NewSMTPChannel(cfg SMTPConfig, renderer EmailRenderer) (*SMTPChannel, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if renderer == nil {
		return nil, fmt.Errorf("email renderer is required")
	}

	return &SMTPChannel{cfg: cfg, renderer: renderer}, nil
}

func (c *SMTPChannel) Available() bool { return c != nil }

func (c *SMTPChannel) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Recipient) == "" {
		return &ChannelError{Message: "email recipient is required"}
	}

	payload, err := buildMIMEMessage(c.fromHeader(), msg)
	if err != nil {
		return &ChannelError{Message: "failed to build email message", Cause: err}
	}

	client, conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := c.transmit(client, msg.Recipient, payload); err != nil {
		return err
	}

	return nil
}

func (c *SMTPChannel) SendTemplated(ctx context.Context, recipient string, subject string, templateName string, data map[string]any) error {
	textBody, htmlBody, err := c.renderer.Render(templateName, data)
	if err != nil {
		return err
	}

	return c.Send(ctx, Message{
		Recipient: recipient,
		Subject:   subject,
		Body:      textBody,
		HTMLBody:  htmlBody,
	})
}

// Probe opens and closes an SMTP session to verify connectivity.
func (c *SMTPChannel) Probe(ctx context.Context) bool {
	client, conn, err := c.connect(ctx)
	if err != nil {
		return false
	}
	defer conn.Close()

	return client.Quit() == nil
}

func (c *SMTPChannel) connect(ctx context.Context) (*smtp.Client, net.Conn, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, &ChannelError{Message: fmt.Sprintf("smtp connect to %s failed", addr), Cause: err}
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, nil, &ChannelError{Message: "smtp handshake failed", Cause: err}
	}

	if c.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
				conn.Close()
				return nil, nil, &ChannelError{Message: "smtp starttls failed", Cause: err}
			}
		}
	}

	if c.cfg.Username != "" || c.cfg.Password != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			conn.Close()
			return nil, nil, &ChannelError{Message: "smtp authentication failed", Cause: err}
		}
	}

	return client, conn, nil
}

func (c *SMTPChannel) transmit(client *smtp.Client, recipient string, payload []byte) error {
	if err := client.Mail(c.cfg.FromEmail); err != nil {
		return &ChannelError{Message: "smtp sender rejected", Cause: err}
	}
	if err := client.Rcpt(recipient); err != nil {
		return &ChannelError{Message: fmt.Sprintf("smtp recipient %s rejected", recipient), Cause: err}
	}

	w, err := client.Data()
	if err != nil {
		return &ChannelError{Message: "smtp data command failed", Cause: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &ChannelError{Message: "smtp payload write failed", Cause: err}
	}
	if err := w.Close(); err != nil {
		return &ChannelError{Message: "smtp payload close failed", Cause: err}
	}

	return client.Quit()
}

func (c *SMTPChannel) fromHeader() string {
	if c.cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", c.cfg.FromName, c.cfg.FromEmail)
	}
	return c.cfg.FromEmail
}

// buildMIMEMessage assembles the wire payload: a plain text/plain body, or a
// multipart/alternative body when an HTML part is present.
func buildMIMEMessage(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}

	writeHeader("From", from)
	writeHeader("To", msg.Recipient)
	writeHeader("Subject", msg.Subject)
	writeHeader("MIME-Version", "1.0")

	if msg.HTMLBody == "" {
		writeHeader("Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(msg.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	writeHeader("Content-Type", fmt.Sprintf(`multipart/alternative; boundary="%s"`, mw.Boundary()))
	buf.WriteString("\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="utf-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="utf-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
