package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Bytes renders the message as RFC 5322 text.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render validates the message and writes it to w. Messages with
// attachments are written as multipart/mixed; a message with only a text
// body is written as a single text/plain entity.
func (m *Message) Render(w io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}

	h := m.header()

	if len(m.Attachments) == 0 {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		body, err := mail.CreateSingleInlineWriter(w, h)
		if err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if _, err := io.WriteString(body, m.TextBody); err != nil {
			return fmt.Errorf("failed to write body: %w", err)
		}
		return body.Close()
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if m.TextBody != "" {
		if err := writeText(mw, m.TextBody); err != nil {
			return err
		}
	}

	for _, att := range m.Attachments {
		if err := writeAttachment(mw, att); err != nil {
			return err
		}
	}

	return mw.Close()
}

func (m *Message) header() mail.Header {
	var h mail.Header
	h.Set("MIME-Version", "1.0")
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{m.From})
	h.SetAddressList("To", m.To)
	h.SetSubject(m.Subject)

	id := m.MessageID
	if id == "" {
		id = NewMessageID(m.From.Address)
	}
	h.SetMessageID(id)
	return h
}

func writeText(mw *mail.Writer, text string) error {
	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("failed to create inline part: %w", err)
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	th.Set("Content-Transfer-Encoding", "quoted-printable")

	part, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := io.WriteString(part, text); err != nil {
		return fmt.Errorf("failed to write body part: %w", err)
	}
	if err := part.Close(); err != nil {
		return err
	}
	return tw.Close()
}

func writeAttachment(mw *mail.Writer, att Attachment) error {
	contentType := att.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	var ah mail.AttachmentHeader
	ah.Set("Content-Type", contentType)
	ah.SetFilename(att.Filename)

	part, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("failed to create attachment part %q: %w", att.Filename, err)
	}
	if _, err := part.Write(att.Content); err != nil {
		return fmt.Errorf("failed to write attachment %q: %w", att.Filename, err)
	}
	return part.Close()
}

// NewMessageID returns a unique Message-ID in the domain of sender.
func NewMessageID(sender string) string {
	return uuid.NewString() + "@" + domainOf(sender)
}

// domainOf returns the part after the last '@', or "localhost".
func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
