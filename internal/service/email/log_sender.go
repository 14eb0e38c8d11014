// internal/service/email/log_sender.go
package email

import (
	"context"

	"go.uber.org/zap"
)

// LogSender only logs messages. Used when no mail provider is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, m Message) error {
	l.logger.Info("email not sent, no provider configured",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("tag", m.Tag))
	return nil
}
