package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogNotifier registra a notificação no log em vez de enviá-la.
// Usado em desenvolvimento, quando não há servidor SMTP configurado.
type LogNotifier struct {
	linkTTL time.Duration
	logger  *zap.Logger
}

func NewLogNotifier(linkTTL time.Duration, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{
		linkTTL: linkTTL,
		logger:  logger.Named("notify"),
	}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient, sender, fileName, link string) error {
	n.logger.Info("notificação de transferência",
		zap.String("recipient", recipient),
		zap.String("sender", sender),
		zap.String("file_name", fileName),
		zap.String("link", link),
		zap.Duration("link_ttl", n.linkTTL),
	)
	return nil
}
