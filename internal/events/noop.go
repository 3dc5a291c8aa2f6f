package events

import (
	"context"

	"go.uber.org/zap"
)

// NoopPublisher logs events instead of delivering them.
// Use in development or when no broker is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a NoopPublisher backed by the given logger.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish logs the subject and returns nil.
func (n *NoopPublisher) Publish(_ context.Context, subject string, payload any) error {
	n.logger.Debug("event (noop, not published)",
		zap.String("subject", subject),
		zap.Any("payload", payload),
	)
	return nil
}

// Close is a no-op.
func (n *NoopPublisher) Close() {}
