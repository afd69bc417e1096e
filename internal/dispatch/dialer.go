package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/mailsender/internal/config"
	"github.com/shineum/mailsender/internal/provider"
	"github.com/shineum/mailsender/internal/provider/graph"
	"github.com/shineum/mailsender/internal/provider/ses"
	"github.com/shineum/mailsender/internal/provider/smtp"
	"github.com/shineum/mailsender/internal/provider/stdout"
	smtptls "github.com/shineum/mailsender/internal/tls"
)

// DefaultDialer selects and builds the provider named by cfg.Provider.
func DefaultDialer(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "", "smtp":
		relayCfg := smtp.RelayConfig{
			Host:    cfg.SMTPTransport,
			Port:    cfg.RelayPort(),
			TLSMode: cfg.SMTP.TLSMode,
			TLS: smtptls.ClientOptions{
				InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
			},
		}
		if user, pass := cfg.Login(); pass != "" {
			relayCfg.Username = user
			relayCfg.Password = pass
		}
		slog.Debug("using SMTP relay provider",
			"host", relayCfg.Host,
			"port", relayCfg.Port,
			"tls_mode", relayCfg.TLSMode,
		)
		relay, err := smtp.New(relayCfg)
		if err != nil {
			return nil, err
		}
		return relay, nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("ses provider requires a region")
		}
		slog.Debug("using AWS SES provider", "region", cfg.SES.Region)
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, fmt.Errorf("graph provider requires tenant_id, client_id and client_secret")
		}
		slog.Debug("using Microsoft Graph provider")
		return graph.New(graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		}), nil

	case "stdout":
		slog.Debug("using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
