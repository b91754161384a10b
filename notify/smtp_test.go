package notify

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// capturedMail é uma mensagem recebida pelo servidor de teste
type capturedMail struct {
	From string
	To   []string
	Data string
}

// captureBackend implementa smtp.Backend guardando as mensagens em memória
type captureBackend struct {
	username string
	password string

	mu    sync.Mutex
	mails []capturedMail
}

func (b *captureBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

func (b *captureBackend) received() []capturedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedMail(nil), b.mails...)
}

// captureSession implementa smtp.Session
type captureSession struct {
	backend *captureBackend
	authed  bool
	from    string
	to      []string
}

func (s *captureSession) AuthPlain(username, password string) error {
	if username != s.backend.username || password != s.backend.password {
		return smtp.ErrAuthFailed
	}
	s.authed = true
	return nil
}

func (s *captureSession) Mail(from string, opts *smtp.MailOptions) error {
	if s.backend.username != "" && !s.authed {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	s.backend.mails = append(s.backend.mails, capturedMail{
		From: s.from,
		To:   append([]string(nil), s.to...),
		Data: string(body),
	})
	s.backend.mu.Unlock()
	return nil
}

func (s *captureSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *captureSession) Logout() error {
	return nil
}

// startCaptureServer sobe um servidor SMTP local sem TLS
func startCaptureServer(t *testing.T, be *captureBackend) int {
	t.Helper()

	s := smtp.NewServer(be)
	s.Domain = "localhost"
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.MaxMessageBytes = 1024 * 1024
	s.MaxRecipients = 50
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go s.Serve(l)
	t.Cleanup(func() { s.Close() })

	return l.Addr().(*net.TCPAddr).Port
}

func testSMTPConfig(port int) config.SMTPConfig {
	return config.SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "sendmyfiles",
		Password: "segredo",
		TLSMode:  "none",
		From:     "no-reply@sendmyfiles.test",
		Timeout:  5 * time.Second,
	}
}

func TestSMTPNotifierDelivers(t *testing.T) {
	be := &captureBackend{username: "sendmyfiles", password: "segredo"}
	port := startCaptureServer(t, be)

	n := NewSMTPNotifier(testSMTPConfig(port), 7*24*time.Hour, zaptest.NewLogger(t))
	n.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	link := "http://localhost:8080/download?token=0123456789abcdef0123456789abcdef"
	err := n.Notify(context.Background(), "b@y.com", "a@x.com", "relatorio.pdf", link)
	require.NoError(t, err)

	mails := be.received()
	require.Len(t, mails, 1)
	mail := mails[0]

	assert.Equal(t, "no-reply@sendmyfiles.test", mail.From)
	assert.Equal(t, []string{"b@y.com"}, mail.To)
	assert.Contains(t, mail.Data, "Subject: You have a new file to receive")
	assert.Contains(t, mail.Data, "To: b@y.com")
	assert.Contains(t, mail.Data, "Date: Fri, 01 Mar 2024 12:00:00 +0000")
	assert.Contains(t, mail.Data, "Message-ID: <")
	assert.Contains(t, mail.Data, "@sendmyfiles.test>")
	assert.Contains(t, mail.Data, "You have received a new file from a@x.com.")
	assert.Contains(t, mail.Data, "File Name: relatorio.pdf")
	assert.Contains(t, mail.Data, link)
	assert.Contains(t, mail.Data, "This link will expire in 7 days.")
}

func TestSMTPNotifierAuthFailure(t *testing.T) {
	be := &captureBackend{username: "sendmyfiles", password: "outra"}
	port := startCaptureServer(t, be)

	n := NewSMTPNotifier(testSMTPConfig(port), time.Hour, zap.NewNop())
	err := n.Notify(context.Background(), "b@y.com", "a@x.com", "a.txt", "link")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b@y.com")
	assert.Empty(t, be.received())
}

func TestSMTPNotifierStartTLSUnsupported(t *testing.T) {
	be := &captureBackend{}
	port := startCaptureServer(t, be)

	cfg := testSMTPConfig(port)
	cfg.TLSMode = "starttls"
	n := NewSMTPNotifier(cfg, time.Hour, zap.NewNop())

	err := n.Notify(context.Background(), "b@y.com", "a@x.com", "a.txt", "link")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
	assert.Empty(t, be.received())
}

func TestSMTPNotifierConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	n := NewSMTPNotifier(testSMTPConfig(port), time.Hour, zap.NewNop())
	err = n.Notify(context.Background(), "b@y.com", "a@x.com", "a.txt", "link")
	assert.Error(t, err)
}

func TestSMTPNotifierWithoutAuth(t *testing.T) {
	be := &captureBackend{}
	port := startCaptureServer(t, be)

	cfg := testSMTPConfig(port)
	cfg.Username = ""
	cfg.Password = ""
	n := NewSMTPNotifier(cfg, time.Hour, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), "b@y.com", "a@x.com", "a.txt", "link"))
	mails := be.received()
	require.Len(t, mails, 1)
	assert.True(t, strings.Contains(mails[0].Data, "This link will expire in 1 hour."))
}
