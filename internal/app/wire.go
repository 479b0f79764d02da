//go:build wireinject
// +build wireinject

package app

import (
	"fmt"

	"github.com/google/wire"
	"go.uber.org/zap"

	"radiorec/internal/app/bus"
	"radiorec/internal/app/health"
	"radiorec/internal/app/recorder"
	"radiorec/internal/app/replicate"
	"radiorec/internal/app/repository"
	"radiorec/internal/app/repository/pg"
	"radiorec/internal/app/repository/sqlite"
	"radiorec/internal/app/scheduler"
	"radiorec/internal/config"
)

func provideStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := pg.NewPostgresDB(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(); err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite":
		return sqlite.NewSQLiteDB(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

func provideJobDAO(store repository.Store) repository.JobDAO { return store }

func provideBus(cfg *config.Config, logger *zap.Logger) *bus.Bus {
	return bus.New(cfg.RedisAddr, logger)
}

func provideSchedulerBus(b *bus.Bus) scheduler.MessageBus { return b }

func provideRecorderBus(b *bus.Bus) recorder.MessageBus { return b }

func provideSubscribeBus(b *bus.Bus) replicate.SubscribeBus { return b }

func provideProber(cfg *config.Config) scheduler.ReadinessProber {
	return health.NewProber(cfg.RecorderHealthURL, cfg.Tuning.ProbeTimeout)
}

func provideTuning(cfg *config.Config) config.Tuning { return cfg.Tuning }

func provideRunner() recorder.Runner { return recorder.NewFFmpegRunner() }

func provideRecordingsDir(cfg *config.Config) string { return cfg.RecordingsDir }

func provideMinio(cfg *config.Config) config.Minio { return cfg.Minio }

// provideObjectStore is nil when no endpoint is configured; the replicator
// then only performs the local copy.
func provideObjectStore(cfg *config.Config) (replicate.ObjectStore, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, nil
	}
	return replicate.NewObjectStore(cfg.Minio)
}

func provideLocalCopyDir(cfg *config.Config) string { return cfg.LocalCopyDir }

func InitializeScheduler(cfg *config.Config, logger *zap.Logger) (*SchedulerApp, error) {
	wire.Build(
		provideStore,
		provideJobDAO,
		provideBus,
		provideSchedulerBus,
		provideProber,
		provideTuning,
		scheduler.NewCoordinator,
		NewSchedulerApp,
	)
	return nil, nil
}

func InitializeRecorder(cfg *config.Config, logger *zap.Logger) (*RecorderApp, error) {
	wire.Build(
		provideStore,
		provideBus,
		provideRecorderBus,
		provideRunner,
		provideRecordingsDir,
		recorder.NewWorker,
		NewRecorderApp,
	)
	return nil, nil
}

func InitializeReplicator(cfg *config.Config, logger *zap.Logger) (*replicate.Replicator, error) {
	wire.Build(
		provideStore,
		provideJobDAO,
		provideBus,
		provideSubscribeBus,
		provideMinio,
		provideObjectStore,
		provideLocalCopyDir,
		replicate.NewReplicator,
	)
	return nil, nil
}
