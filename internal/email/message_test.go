package email

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
)

func mustAddress(t *testing.T, name, raw string) *Address {
	t.Helper()
	addr, err := ParseAddress(name, raw)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", raw, err)
	}
	return addr
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		display  string
		raw      string
		wantAddr string
		wantName string
		wantErr  bool
	}{
		{name: "bare address", display: "Alice", raw: "alice@x.com", wantAddr: "alice@x.com", wantName: "Alice"},
		{name: "surrounding spaces", raw: "  bob@example.com ", wantAddr: "bob@example.com"},
		{name: "display name kept", raw: "Carol <carol@example.com>", wantAddr: "carol@example.com", wantName: "Carol"},
		{name: "display name replaced", display: "C", raw: "Carol <carol@example.com>", wantAddr: "carol@example.com", wantName: "C"},
		{name: "no at sign", raw: "not-an-email", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing local part", raw: "@example.com", wantErr: true},
		{name: "two addresses", raw: "a@example.com, b@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAddress(tt.display, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Address != tt.wantAddr {
				t.Errorf("Address: got %q, want %q", got.Address, tt.wantAddr)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name: got %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	from := mustAddress(t, "Office", "office@example.com")
	to := []*Address{mustAddress(t, "Alice", "alice@example.com")}

	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{name: "valid", msg: Message{From: from, To: to, Subject: "Report"}},
		{name: "no sender", msg: Message{To: to}, wantErr: true},
		{name: "bad sender", msg: Message{From: &Address{Address: "nope"}, To: to}, wantErr: true},
		{name: "no recipients", msg: Message{From: from}, wantErr: true},
		{name: "nil recipient", msg: Message{From: from, To: []*Address{nil}}, wantErr: true},
		{name: "bad recipient", msg: Message{From: from, To: []*Address{{Address: "x"}}}, wantErr: true},
		{name: "subject injection", msg: Message{From: from, To: to, Subject: "a\r\nBcc: evil@example.com"}, wantErr: true},
		{name: "unnamed attachment", msg: Message{From: from, To: to, Attachments: []Attachment{{Content: []byte("x")}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.msg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRender_WithAttachment(t *testing.T) {
	t.Parallel()

	msg := &Message{
		From: mustAddress(t, "Dispatch Office", "office@example.com"),
		To: []*Address{
			mustAddress(t, "Alice", "alice@x.com"),
			mustAddress(t, "Bob", "bob@x.com"),
		},
		Subject: "Weekly report",
		Attachments: []Attachment{{
			Filename:    "report.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.4 fake"),
		}},
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to read rendered message: %v", err)
	}

	subject, err := mr.Header.Subject()
	if err != nil || subject != "Weekly report" {
		t.Errorf("Subject: got %q (err %v), want %q", subject, err, "Weekly report")
	}

	to, err := mr.Header.AddressList("To")
	if err != nil {
		t.Fatalf("To: %v", err)
	}
	if len(to) != 2 || to[0].Address != "alice@x.com" || to[1].Address != "bob@x.com" {
		t.Errorf("To: got %v, want alice then bob", to)
	}

	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Name != "Dispatch Office" {
		t.Errorf("From: got %v (err %v)", from, err)
	}

	id, err := mr.Header.MessageID()
	if err != nil || !strings.HasSuffix(id, "@example.com") {
		t.Errorf("Message-ID: got %q (err %v), want suffix @example.com", id, err)
	}

	var attachments int
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		ah, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			t.Errorf("unexpected non-attachment part")
			continue
		}
		attachments++
		name, _ := ah.Filename()
		if name != "report.pdf" {
			t.Errorf("Filename: got %q, want %q", name, "report.pdf")
		}
		ct, _, _ := ah.ContentType()
		if ct != "application/pdf" {
			t.Errorf("ContentType: got %q, want %q", ct, "application/pdf")
		}
		body, _ := io.ReadAll(p.Body)
		if string(body) != "%PDF-1.4 fake" {
			t.Errorf("attachment content: got %q", body)
		}
	}
	if attachments != 1 {
		t.Errorf("attachment count: got %d, want 1", attachments)
	}
}

func TestRender_TextOnly(t *testing.T) {
	t.Parallel()

	msg := &Message{
		From:      mustAddress(t, "", "office@example.com"),
		To:        []*Address{mustAddress(t, "", "dev@example.com")},
		Subject:   "Feedback",
		TextBody:  "The send button is too small.",
		MessageID: "fixed@example.com",
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to read rendered message: %v", err)
	}
	if id, _ := mr.Header.MessageID(); id != "fixed@example.com" {
		t.Errorf("Message-ID: got %q, want %q", id, "fixed@example.com")
	}

	p, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	if _, ok := p.Header.(*mail.InlineHeader); !ok {
		t.Fatalf("expected inline part, got %T", p.Header)
	}
	body, _ := io.ReadAll(p.Body)
	if string(body) != "The send button is too small." {
		t.Errorf("body: got %q", body)
	}
}

func TestRender_InvalidMessage(t *testing.T) {
	t.Parallel()

	msg := &Message{From: mustAddress(t, "", "office@example.com")}
	if _, err := msg.Bytes(); err == nil {
		t.Fatal("expected error for message without recipients")
	}
}

func TestRecipients(t *testing.T) {
	t.Parallel()

	msg := &Message{To: []*Address{
		mustAddress(t, "Alice", "alice@x.com"),
		mustAddress(t, "Bob", "bob@x.com"),
	}}
	got := msg.Recipients()
	if len(got) != 2 || got[0] != "alice@x.com" || got[1] != "bob@x.com" {
		t.Errorf("Recipients: got %v", got)
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  []byte
		want     string
	}{
		{name: "pdf by extension", filename: "report.pdf", want: "application/pdf"},
		{name: "upper-case extension", filename: "REPORT.PDF", want: "application/pdf"},
		{name: "png by extension", filename: "scan.png", want: "image/png"},
		{name: "sniffed png", filename: "scan", content: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), want: "image/png"},
		{name: "empty unknown", filename: "blob", want: DefaultContentType},
		{name: "unknown binary", filename: "blob.zzzunknown", content: []byte{0x00, 0x01, 0x02, 0xff}, want: DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ContentType(tt.filename, tt.content); got != tt.want {
				t.Errorf("ContentType(%q): got %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	if got := domainOf("office@example.com"); got != "example.com" {
		t.Errorf("domainOf: got %q", got)
	}
	if got := domainOf("broken@"); got != "localhost" {
		t.Errorf("domainOf: got %q", got)
	}
}

func TestBytes_StableWithMessageID(t *testing.T) {
	t.Parallel()

	from, _ := ParseAddress("", "office@example.com")
	to, _ := ParseAddress("", "alice@x.com")
	m := &Message{
		From:      from,
		To:        []*Address{to},
		Subject:   "Weekly report",
		MessageID: NewMessageID(from.Address),
	}

	ids := make([]string, 2)
	for i := range ids {
		raw, err := m.Bytes()
		if err != nil {
			t.Fatalf("Bytes: %v", err)
		}
		mr, err := mail.CreateReader(bytes.NewReader(raw))
		if err != nil {
			t.Fatal(err)
		}
		ids[i], _ = mr.Header.MessageID()
	}
	if ids[0] != ids[1] || !strings.HasSuffix(ids[0], "@example.com") {
		t.Errorf("Message-IDs: got %q and %q", ids[0], ids[1])
	}
}

func TestNewMessageID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewMessageID("office@example.com"), NewMessageID("office@example.com")
	if a == b {
		t.Errorf("expected distinct IDs, got %q twice", a)
	}
	if got := NewMessageID("no-domain"); !strings.HasSuffix(got, "@localhost") {
		t.Errorf("fallback domain: got %q", got)
	}
}
