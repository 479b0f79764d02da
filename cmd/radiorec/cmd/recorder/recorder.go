package recorder

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"radiorec/internal/app"
	"radiorec/internal/app/common"
	"radiorec/internal/app/health"
	"radiorec/internal/config"
)

// Cmd represents the recorder command
var Cmd = &cobra.Command{
	Use:   "recorder",
	Short: "Run the capture worker service",
	Long: `Run the capture worker service.

Consumes start commands from the bus and executes each capture with a
bounded-duration ffmpeg process. When object storage is configured the
replication subscriber runs alongside. Exposes /health and /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		logger := common.MustNewLogger(cfg.Development)
		defer logger.Sync()

		svc, err := app.InitializeRecorder(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize recorder", zap.Error(err))
		}
		defer svc.Bus.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := svc.Bus.Ping(ctx); err != nil {
			logger.Fatal("bus unreachable", zap.Error(err))
		}

		if cfg.Minio.Endpoint != "" || cfg.LocalCopyDir != "" {
			replicator, err := app.InitializeReplicator(cfg, logger)
			if err != nil {
				logger.Fatal("failed to initialize replicator", zap.Error(err))
			}
			go replicator.Run(ctx)
		} else {
			logger.Info("no storage targets configured, replication disabled")
		}

		srv := health.Serve(cfg.RecorderHealthAddr, logger, func() health.Report {
			status := "starting"
			if svc.Worker.Ready() {
				status = "ready"
			}
			return health.Report{
				Status:         status,
				BusConnected:   status == "ready",
				ActiveCaptures: svc.Worker.ActiveCaptures(),
			}
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		if err := svc.Worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("worker stopped", zap.Error(err))
		}
		logger.Info("recorder shut down")
	},
}
