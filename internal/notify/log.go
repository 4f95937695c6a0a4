package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogProvider writes notifications to the log instead of delivering them.
// Useful for local development; every send is confirmed.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(_ context.Context, n Notification) error {
	p.logger.Info("notification",
		zap.String("owner", n.Owner),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
	return nil
}
