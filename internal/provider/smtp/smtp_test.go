package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/shineum/mailsender/internal/email"
	smtptls "github.com/shineum/mailsender/internal/tls"
	"github.com/shineum/mailsender/internal/tls/tlstest"
)

// received is one message accepted by the test relay.
type received struct {
	username string
	from     string
	to       []string
	data     []byte
}

// backend is an in-memory go-smtp backend that records deliveries.
type backend struct {
	username string
	password string
	rejectTo string

	mu       sync.Mutex
	messages []received
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

func (b *backend) delivered() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.messages...)
}

type session struct {
	backend *backend
	cur     received
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.cur.username = username
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.cur.username == "" {
		return smtp.ErrAuthRequired
	}
	s.cur.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.rejectTo {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "no such user"}
	}
	s.cur.to = append(s.cur.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.cur.data = data
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.cur)
	s.backend.mu.Unlock()
	return nil
}

func (s *session) Reset() {
	s.cur = received{username: s.cur.username}
}

func (s *session) Logout() error {
	return nil
}

// startRelay serves be on a loopback listener and returns its port. With
// implicit set, the listener speaks TLS from the first byte.
func startRelay(t *testing.T, be *backend, implicit bool) (int, smtptls.ClientOptions) {
	t.Helper()

	cert, pool := tlstest.Certificate(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{*cert}}

	if implicit {
		ln = tls.NewListener(ln, srv.TLSConfig)
	}

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	port := ln.Addr().(*net.TCPAddr).Port
	return port, smtptls.ClientOptions{RootCAs: pool}
}

func testMessage(t *testing.T) *email.Message {
	t.Helper()
	from, err := email.ParseAddress("Dispatch Office", "office@example.com")
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := email.ParseAddress("Alice", "alice@x.com")
	bob, _ := email.ParseAddress("Bob", "bob@x.com")
	return &email.Message{
		From:    from,
		To:      []*email.Address{alice, bob},
		Subject: "Weekly report",
		Attachments: []email.Attachment{{
			Filename:    "report.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.4 fake"),
		}},
	}
}

func TestSend_ImplicitTLS(t *testing.T) {
	t.Parallel()

	be := &backend{username: "office@example.com", password: "secret"}
	port, opts := startRelay(t, be, true)

	r, err := New(RelayConfig{
		Host:     "127.0.0.1",
		Port:     port,
		TLSMode:  ModeImplicit,
		Username: "office@example.com",
		Password: "secret",
		TLS:      opts,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Send(context.Background(), testMessage(t)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := be.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered: got %d messages, want 1", len(got))
	}
	if got[0].from != "office@example.com" {
		t.Errorf("MAIL FROM: got %q", got[0].from)
	}
	if strings.Join(got[0].to, ",") != "alice@x.com,bob@x.com" {
		t.Errorf("RCPT TO: got %v", got[0].to)
	}

	mr, err := mail.CreateReader(bytes.NewReader(got[0].data))
	if err != nil {
		t.Fatalf("failed to parse delivered message: %v", err)
	}
	if subject, _ := mr.Header.Subject(); subject != "Weekly report" {
		t.Errorf("Subject: got %q", subject)
	}
}

func TestSend_PlainConnection(t *testing.T) {
	t.Parallel()

	be := &backend{username: "u", password: "p"}
	port, _ := startRelay(t, be, false)

	r, err := New(RelayConfig{Host: "127.0.0.1", Port: port, TLSMode: ModeNone, Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Send(context.Background(), testMessage(t)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := len(be.delivered()); n != 1 {
		t.Errorf("delivered: got %d, want 1", n)
	}
}

func TestSend_AuthRejected(t *testing.T) {
	t.Parallel()

	be := &backend{username: "u", password: "p"}
	port, _ := startRelay(t, be, false)

	r, err := New(RelayConfig{Host: "127.0.0.1", Port: port, TLSMode: ModeNone, Username: "u", Password: "wrong"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Send(context.Background(), testMessage(t)); err == nil {
		t.Fatal("expected authentication error")
	}
	if n := len(be.delivered()); n != 0 {
		t.Errorf("delivered: got %d, want 0", n)
	}
}

func TestSend_RecipientRejected(t *testing.T) {
	t.Parallel()

	be := &backend{username: "u", password: "p", rejectTo: "bob@x.com"}
	port, _ := startRelay(t, be, false)

	r, err := New(RelayConfig{Host: "127.0.0.1", Port: port, TLSMode: ModeNone, Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = r.Send(context.Background(), testMessage(t))
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		t.Fatalf("expected *smtp.SMTPError, got %v", err)
	}
	if smtpErr.Code != 550 {
		t.Errorf("Code: got %d, want 550", smtpErr.Code)
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	r, err := New(RelayConfig{Host: "127.0.0.1", Port: port, TLSMode: ModeNone})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Send(context.Background(), testMessage(t)); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  RelayConfig
	}{
		{name: "empty host tls", cfg: RelayConfig{Port: 465}},
		{name: "empty host plain", cfg: RelayConfig{Port: 25, TLSMode: ModeNone}},
		{name: "bad host", cfg: RelayConfig{Host: "smtp example.com", Port: 465}},
		{name: "zero port", cfg: RelayConfig{Host: "smtp.example.com"}},
		{name: "port too large", cfg: RelayConfig{Host: "smtp.example.com", Port: 70000}},
		{name: "unknown mode", cfg: RelayConfig{Host: "smtp.example.com", Port: 465, TLSMode: "ssl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); err == nil {
				t.Errorf("New(%+v): expected error", tt.cfg)
			}
		})
	}
}

func TestNew_DefaultsToImplicitTLS(t *testing.T) {
	t.Parallel()

	r, err := New(RelayConfig{Host: "smtp.example.com", Port: 465})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.mode != ModeImplicit {
		t.Errorf("mode: got %q, want %q", r.mode, ModeImplicit)
	}
	if r.addr != net.JoinHostPort("smtp.example.com", strconv.Itoa(465)) {
		t.Errorf("addr: got %q", r.addr)
	}
	if r.Name() != "smtp" {
		t.Errorf("Name: got %q", r.Name())
	}
}
