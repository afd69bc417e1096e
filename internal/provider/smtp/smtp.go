// Package smtp implements a Provider that submits messages to an SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/shineum/mailsender/internal/email"
	smtptls "github.com/shineum/mailsender/internal/tls"
)

// TLS modes, matching the config values.
const (
	ModeImplicit = "tls"
	ModeStartTLS = "starttls"
	ModeNone     = "none"
)

// RelayConfig holds the configuration for creating a Relay.
type RelayConfig struct {
	Host     string
	Port     int
	TLSMode  string
	Username string
	Password string

	TLS smtptls.ClientOptions
}

// Relay submits messages to an authenticated SMTP relay, one connection
// per message.
type Relay struct {
	addr      string
	mode      string
	username  string
	password  string
	tlsConfig *tls.Config
}

// New validates cfg and prepares a Relay. No connection is made until Send.
func New(cfg RelayConfig) (*Relay, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid relay port %d", cfg.Port)
	}

	mode := cfg.TLSMode
	if mode == "" {
		mode = ModeImplicit
	}

	r := &Relay{
		addr:     net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		mode:     mode,
		username: cfg.Username,
		password: cfg.Password,
	}

	switch mode {
	case ModeImplicit, ModeStartTLS:
		tlsConfig, err := smtptls.ClientConfig(cfg.Host, cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		r.tlsConfig = tlsConfig
	case ModeNone:
		if cfg.Host == "" {
			return nil, fmt.Errorf("relay host is empty")
		}
	default:
		return nil, fmt.Errorf("unknown TLS mode %q", mode)
	}

	return r, nil
}

// Send connects to the relay, authenticates when credentials are set and
// submits msg. The message is rendered fully before connecting.
func (r *Relay) Send(ctx context.Context, msg *email.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}

	c, err := r.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", r.addr, err)
	}
	defer c.Close()

	if deadline, ok := ctx.Deadline(); ok {
		c.CommandTimeout = time.Until(deadline)
		c.SubmissionTimeout = time.Until(deadline)
	}

	if r.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", r.username, r.password)); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := c.SendMail(msg.From.Address, msg.Recipients(), bytes.NewReader(raw)); err != nil {
		return err
	}

	if err := c.Quit(); err != nil {
		slog.Debug("relay QUIT failed", "addr", r.addr, "error", err)
	}

	slog.Debug("message submitted to relay",
		"addr", r.addr,
		"recipients", len(msg.To),
		"size", len(raw),
	)
	return nil
}

// Name returns the provider name.
func (r *Relay) Name() string {
	return "smtp"
}

func (r *Relay) dial() (*smtp.Client, error) {
	switch r.mode {
	case ModeStartTLS:
		return smtp.DialStartTLS(r.addr, r.tlsConfig)
	case ModeNone:
		return smtp.Dial(r.addr)
	default:
		return smtp.DialTLS(r.addr, r.tlsConfig)
	}
}
