package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"go.uber.org/zap"
)

// Notifier envia ao destinatário o link de acesso ao arquivo
type Notifier interface {
	Notify(ctx context.Context, recipient, sender, fileName, link string) error
}

// New escolhe o notificador pela configuração: sem smtp.host as
// notificações vão apenas para o log
func New(cfg config.SMTPConfig, linkTTL time.Duration, logger *zap.Logger) Notifier {
	if cfg.Host == "" {
		return NewLogNotifier(linkTTL, logger)
	}
	return NewSMTPNotifier(cfg, linkTTL, logger)
}

// Notification é o conteúdo de uma notificação
type Notification struct {
	Recipient string
	Sender    string
	FileName  string
	Link      string
	LinkTTL   time.Duration
}

// Subject retorna o assunto do email
func (n Notification) Subject() string {
	return "You have a new file to receive"
}

// Body retorna o texto do email
func (n Notification) Body() string {
	var b strings.Builder
	b.WriteString("Hello,\r\n\r\n")
	fmt.Fprintf(&b, "You have received a new file from %s.\r\n\r\n", n.Sender)
	fmt.Fprintf(&b, "File Name: %s\r\n\r\n", n.FileName)
	b.WriteString("Click the link below to download your file:\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", n.Link)
	fmt.Fprintf(&b, "This link will expire in %s.\r\n\r\n", formatLifetime(n.LinkTTL))
	b.WriteString("Best regards,\r\nSendMyFiles Team\r\n")
	return b.String()
}

// formatLifetime descreve a validade do link em dias, horas ou minutos
func formatLifetime(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	default:
		return plural(int64(d/time.Minute), "minute")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
