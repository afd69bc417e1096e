// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"

	"github.com/shineum/mailsender/internal/email"
)

// Provider is the interface that email delivery backends must implement.
// Each provider hands a fully built message to its target service (an
// SMTP relay, AWS SES, Microsoft Graph or stdout).
type Provider interface {
	// Send delivers an email message through this provider.
	// It returns an error if the delivery fails. Providers do not retry.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}
