package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPNotifier envia as notificações por SMTP
type SMTPNotifier struct {
	cfg     config.SMTPConfig
	linkTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewSMTPNotifier cria um notificador SMTP
func NewSMTPNotifier(cfg config.SMTPConfig, linkTTL time.Duration, logger *zap.Logger) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{
		cfg:     cfg,
		linkTTL: linkTTL,
		logger:  logger.Named("notify"),
		now:     time.Now,
	}
}

// Notify envia um único email, sem novas tentativas
func (n *SMTPNotifier) Notify(ctx context.Context, recipient, sender, fileName, link string) error {
	msg := Notification{
		Recipient: recipient,
		Sender:    sender,
		FileName:  fileName,
		Link:      link,
		LinkTTL:   n.linkTTL,
	}

	if err := n.send(ctx, recipient, n.buildMessage(msg)); err != nil {
		n.logger.Warn("falha ao enviar notificação",
			zap.String("recipient", recipient),
			zap.Error(err),
		)
		return fmt.Errorf("falha ao enviar email para %s: %w", recipient, err)
	}

	n.logger.Debug("notificação enviada", zap.String("recipient", recipient))
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, recipient string, message []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	conn, err := n.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("falha ao conectar em %s: %w", addr, err)
	}

	// Cancela a conversa SMTP junto com o contexto
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("falha na saudação SMTP: %w", err)
	}
	defer c.Close()

	c.CommandTimeout = n.cfg.Timeout
	c.SubmissionTimeout = n.cfg.Timeout

	if n.cfg.TLSMode == "starttls" {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("servidor SMTP não suporta STARTTLS")
		}
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return fmt.Errorf("falha no STARTTLS: %w", err)
		}
	}

	if n.cfg.Username != "" {
		auth := sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("falha na autenticação SMTP: %w", err)
		}
	}

	if err := c.Mail(n.cfg.From, nil); err != nil {
		return fmt.Errorf("falha no MAIL FROM: %w", err)
	}
	if err := c.Rcpt(recipient, nil); err != nil {
		return fmt.Errorf("falha no RCPT TO: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("falha no DATA: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		w.Close()
		return fmt.Errorf("falha ao escrever mensagem: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("servidor recusou a mensagem: %w", err)
	}

	return c.Quit()
}

func (n *SMTPNotifier) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: n.cfg.Timeout}
	if n.cfg.TLSMode == "implicit" {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: n.cfg.Host},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (n *SMTPNotifier) buildMessage(msg Notification) []byte {
	domain := "localhost"
	if _, d, ok := strings.Cut(n.cfg.From, "@"); ok && d != "" {
		domain = d
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject())
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body())
	return []byte(b.String())
}
