package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"

	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/rs/zerolog"
)

// SMTPDispatcher renders messages and delivers them over SMTP.
type SMTPDispatcher struct {
	config   config.SMTPConfig
	renderer *Renderer
	logger   zerolog.Logger
}

var _ Dispatcher = (*SMTPDispatcher)(nil)

// NewSMTPDispatcher creates an SMTP dispatcher.
func NewSMTPDispatcher(cfg config.SMTPConfig, renderer *Renderer, logger zerolog.Logger) (*SMTPDispatcher, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("smtp port is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPDispatcher{
		config:   cfg,
		renderer: renderer,
		logger:   logger.With().Str("component", "mail").Logger(),
	}, nil
}

// Send implements Dispatcher.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	rendered, err := d.renderer.Render(msg)
	if err != nil {
		return err
	}

	d.logger.Debug().
		Str("to", msg.To).
		Str("template", msg.TemplateKey).
		Str("language", rendered.Language.String()).
		Msg("sending mail")

	raw := buildMessage(d.config.From, msg.To, rendered)
	addr := net.JoinHostPort(d.config.Host, strconv.Itoa(d.config.Port))

	if d.config.UseTLS {
		err = d.sendTLS(ctx, addr, msg.To, raw)
	} else {
		err = d.sendPlain(addr, msg.To, raw)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("to", msg.To).Str("template", msg.TemplateKey).Msg("failed to send mail")
		return fmt.Errorf("send %s mail: %w", msg.TemplateKey, err)
	}

	d.logger.Info().Str("to", msg.To).Str("template", msg.TemplateKey).Msg("mail sent")
	return nil
}

// buildMessage constructs the message with headers.
func buildMessage(from, to string, r *Rendered) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", r.Subject))
	fmt.Fprintf(&buf, "Content-Language: %s\r\n", r.Language)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(r.HTMLBody)
	return buf.Bytes()
}

func (d *SMTPDispatcher) auth() smtp.Auth {
	if d.config.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", d.config.Username, d.config.Password, d.config.Host)
}

// sendPlain sends without TLS, for port 25 or trusted networks.
func (d *SMTPDispatcher) sendPlain(addr, to string, msg []byte) error {
	return smtp.SendMail(addr, d.auth(), d.config.From, []string{to}, msg)
}

// sendTLS sends over implicit TLS, for port 465.
func (d *SMTPDispatcher) sendTLS(ctx context.Context, addr, to string, msg []byte) error {
	dialer := &tls.Dialer{Config: &tls.Config{
		ServerName: d.config.Host,
		MinVersion: tls.VersionTLS12,
	}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, d.config.Host)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if auth := d.auth(); auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err = client.Mail(d.config.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close message writer: %w", err)
	}
	return client.Quit()
}
