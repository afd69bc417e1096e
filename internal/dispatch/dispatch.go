// Package dispatch collects recipients and one attachment for a compose
// session and sends them as a single message through a provider.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/shineum/mailsender/internal/config"
	"github.com/shineum/mailsender/internal/email"
	"github.com/shineum/mailsender/internal/provider"
	"github.com/shineum/mailsender/internal/roster"
)

// ConfigLoader returns the configuration to use for one send attempt.
type ConfigLoader func() (*config.Config, error)

// Dialer builds the provider for one send attempt.
type Dialer func(ctx context.Context, cfg *config.Config) (provider.Provider, error)

// Recipient is a display name paired with a parsed mailbox.
type Recipient struct {
	Name    string
	Address *email.Address
}

func (r Recipient) equal(o Recipient) bool {
	return r.Name == o.Name && r.Address.Address == o.Address.Address
}

func newRecipient(name, address string) (Recipient, error) {
	addr, err := email.ParseAddress(name, address)
	if err != nil {
		return Recipient{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return Recipient{Name: name, Address: addr}, nil
}

// Dispatcher owns the state of one compose session. All methods are safe
// for concurrent use; Send holds the lock for the whole attempt.
type Dispatcher struct {
	mu            sync.Mutex
	recipients    []Recipient
	attachment    string
	hasAttachment bool

	loadConfig ConfigLoader
	dial       Dialer
}

// New creates a Dispatcher with an empty session. A nil dial uses
// DefaultDialer.
func New(load ConfigLoader, dial Dialer) *Dispatcher {
	if dial == nil {
		dial = DefaultDialer
	}
	return &Dispatcher{loadConfig: load, dial: dial}
}

// Add appends a recipient. The session is unchanged if address does not
// parse.
func (d *Dispatcher) Add(name, address string) error {
	r, err := newRecipient(name, address)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = append(d.recipients, r)
	return nil
}

// Remove deletes every recipient equal to (name, address). Unknown or
// unparseable input is ignored.
func (d *Dispatcher) Remove(name, address string) {
	target, err := newRecipient(name, address)
	if err != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = slices.DeleteFunc(d.recipients, target.equal)
}

// SetAttachment replaces the attachment with path, which must name an
// existing regular file. On error the previous attachment is kept.
func (d *Dispatcher) SetAttachment(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilePath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidFilePath, path)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.attachment = path
	d.hasAttachment = true
	return nil
}

// HasRecipients reports whether the session holds at least one recipient.
func (d *Dispatcher) HasRecipients() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recipients) > 0
}

// HasAttachment reports whether an attachment is set.
func (d *Dispatcher) HasAttachment() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasAttachment
}

// Recipients returns a copy of the session recipients in order.
func (d *Dispatcher) Recipients() []Recipient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.recipients)
}

// Attachment returns the attachment path and whether one is set.
func (d *Dispatcher) Attachment() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attachment, d.hasAttachment
}

// Reset clears recipients and attachment.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = nil
	d.attachment = ""
	d.hasAttachment = false
}

// Send builds one message from the session recipients plus extra and the
// attachment, and hands it to the configured provider. Every extra entry
// must parse or nothing is sent. On success extra is folded into the
// session recipients; on any error the session is left as it was.
func (d *Dispatcher) Send(ctx context.Context, extra []roster.Person) error {
	added := make([]Recipient, 0, len(extra))
	for _, p := range extra {
		r, err := newRecipient(p.Name, p.Mail)
		if err != nil {
			return err
		}
		added = append(added, r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	merged := append(slices.Clone(d.recipients), added...)
	if len(merged) == 0 {
		return ErrNoRecipients
	}
	if !d.hasAttachment {
		return ErrNoFile
	}

	cfg, err := d.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	content, err := os.ReadFile(d.attachment)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilePath, err)
	}

	from, err := cfg.SenderMailbox()
	if err != nil {
		return fmt.Errorf("%w: sender: %w", ErrInvalidMessage, err)
	}

	to := make([]*email.Address, 0, len(merged))
	for _, r := range merged {
		to = append(to, r.Address)
	}

	filename := filepath.Base(d.attachment)
	msg := &email.Message{
		From:    from,
		To:      to,
		Subject: cfg.Title,
		Attachments: []email.Attachment{{
			Filename:    filename,
			ContentType: email.ContentType(filename, content),
			Content:     content,
		}},
	}

	if err := d.deliver(ctx, cfg, msg); err != nil {
		return err
	}

	d.recipients = merged
	return nil
}

// SendFeedback mails text to the configured feedback recipient. Session
// state is not used.
func (d *Dispatcher) SendFeedback(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyFeedback
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, err := d.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	from, to, err := cfg.FeedbackMailboxes()
	if err != nil {
		return fmt.Errorf("%w: feedback address: %w", ErrInvalidMessage, err)
	}

	msg := &email.Message{
		From:     from,
		To:       []*email.Address{to},
		Subject:  cfg.Feedback.Subject,
		TextBody: text,
	}
	return d.deliver(ctx, cfg, msg)
}

// deliver validates msg, dials the provider and sends. The provider
// renders the message; the Message-ID is fixed here so every rendering
// carries the same one.
func (d *Dispatcher) deliver(ctx context.Context, cfg *config.Config, msg *email.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.MessageID == "" {
		msg.MessageID = email.NewMessageID(msg.From.Address)
	}

	p, err := d.dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoRemoteConnection, err)
	}

	if err := p.Send(ctx, msg); err != nil {
		return &SendError{Provider: p.Name(), Err: err}
	}
	return nil
}
