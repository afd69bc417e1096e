// Package email defines the outbound message model and its MIME rendering.
package email

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// Address is a display name paired with an RFC 5322 address.
type Address = mail.Address

// Message is an outbound email built for a single send attempt.
type Message struct {
	From        *Address
	To          []*Address
	Subject     string
	TextBody    string
	Attachments []Attachment

	// MessageID is used verbatim when set, otherwise one is generated at
	// render time from the sender's domain.
	MessageID string
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ParseAddress parses raw as a single RFC 5322 address. A non-empty name
// replaces any display name found in raw.
func ParseAddress(name, raw string) (*Address, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", raw, err)
	}
	if name != "" {
		addr.Name = name
	}
	return addr, nil
}

// Recipients returns the bare To addresses, in order, for the SMTP envelope.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To))
	for _, to := range m.To {
		out = append(out, to.Address)
	}
	return out
}

// Validate checks that the message can be rendered and addressed.
func (m *Message) Validate() error {
	if m.From == nil || m.From.Address == "" {
		return errors.New("message has no sender")
	}
	if _, err := mail.ParseAddress(m.From.Address); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.From.Address, err)
	}
	if len(m.To) == 0 {
		return errors.New("message has no recipients")
	}
	for i, to := range m.To {
		if to == nil {
			return fmt.Errorf("recipient %d is nil", i)
		}
		if _, err := mail.ParseAddress(to.Address); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to.Address, err)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("subject contains a line break")
	}
	for i, att := range m.Attachments {
		if att.Filename == "" {
			return fmt.Errorf("attachment %d has no file name", i)
		}
	}
	return nil
}
