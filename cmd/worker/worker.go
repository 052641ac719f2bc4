package main

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/anomaly"
	"github.com/Aloksam11/energy-ingestion-engine/internal/config"
	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/mq"
	"github.com/Aloksam11/energy-ingestion-engine/internal/repository"
	"github.com/Aloksam11/energy-ingestion-engine/internal/service"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.Processor,
) (*mq.Consumer, error) {
	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.IngestQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting ingest consumer",
				zap.String("queue", cfg.RabbitMQ.IngestQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// startFleetReporter periodically computes fleet stats from the hot state
// and publishes them to the events exchange.
func startFleetReporter(
	lc fx.Lifecycle,
	analytics *service.Analytics,
	publisher *mq.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	interval := time.Duration(cfg.FleetReport.IntervalSeconds) * time.Second

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case now := <-ticker.C:
						stats, err := analytics.FleetStats(ctx, now.UTC())
						if err != nil {
							logger.Error("failed to compute fleet stats", zap.Error(err))
							continue
						}

						logger.Info("fleet stats",
							zap.Int64("total_vehicles", stats.TotalVehicles),
							zap.Int64("total_meters", stats.TotalMeters),
							zap.Int("active_vehicles", stats.ActiveVehicles),
							zap.Int("active_meters", stats.ActiveMeters),
							zap.Float64("avg_fleet_soc", stats.AvgFleetSoc),
							zap.Float64("avg_fleet_battery_temp", stats.AvgFleetBatteryTemp),
						)

						event := mq.FleetStatsEvent{
							TotalVehicles:       stats.TotalVehicles,
							TotalMeters:         stats.TotalMeters,
							ActiveVehicles:      stats.ActiveVehicles,
							ActiveMeters:        stats.ActiveMeters,
							AvgFleetSoc:         stats.AvgFleetSoc,
							AvgFleetBatteryTemp: stats.AvgFleetBatteryTemp,
							ReportedAt:          now.UTC().Format(time.RFC3339),
						}
						if err := publisher.PublishFleetStats(ctx, event, cfg.RabbitMQ.FleetStatsRoutingKey); err != nil {
							logger.Error("failed to publish fleet stats", zap.Error(err))
						}
					}
				}
			}()

			logger.Info("fleet reporter started", zap.Duration("interval", interval))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return nil
		},
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideAnomalyDetector creates a new counter anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.CounterJumpThreshold)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
}

// ProvideIngestor creates a new ingestion coordinator instance
func ProvideIngestor(
	repo *repository.Repository,
	publisher *mq.Publisher,
	detector *anomaly.Detector,
	cfg *config.Config,
	logger *zap.Logger,
) *service.Ingestor {
	return service.NewIngestor(repo, publisher, detector, cfg, logger)
}

// ProvideAssociationService creates a new association service instance
func ProvideAssociationService(repo *repository.Repository, logger *zap.Logger) *service.AssociationService {
	return service.NewAssociationService(repo, logger)
}

// ProvideAnalytics creates a new analytics engine instance
func ProvideAnalytics(repo *repository.Repository, logger *zap.Logger) *service.Analytics {
	return service.NewAnalytics(repo, logger)
}

// ProvideProcessor creates a new batch message processor instance
func ProvideProcessor(ingestor *service.Ingestor, logger *zap.Logger) *service.Processor {
	return service.NewProcessor(ingestor, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}
