package main

import (
	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/config"
	"github.com/Aloksam11/energy-ingestion-engine/internal/logging"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
