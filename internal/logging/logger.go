package logging

import (
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithBatchID returns a logger with batch_id field
func WithBatchID(logger *zap.Logger, batchID string) *zap.Logger {
	return logger.With(zap.String("batch_id", batchID))
}
