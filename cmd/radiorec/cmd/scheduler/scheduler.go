package scheduler

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

// Cmd represents the scheduler command
var Cmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the schedule coordinator service",
	Long: `Run the schedule coordinator service.

Consumes schedule and cancel commands from the bus, fires start/stop timers,
recovers interrupted recordings on startup and keeps recurring series
populated. Exposes /health and /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		logger := common.MustNewLogger(cfg.Development)
		defer logger.Sync()

		svc, err := app.InitializeScheduler(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize scheduler", zap.Error(err))
		}
		defer svc.Bus.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := svc.Bus.Ping(ctx); err != nil {
			logger.Fatal("bus unreachable", zap.Error(err))
		}

		srv := health.Serve(cfg.SchedulerHealthAddr, logger, func() health.Report {
			status := "starting"
			if svc.Coordinator.Ready() {
				status = "ready"
			}
			return health.Report{
				Status:       status,
				BusConnected: status == "ready",
				ArmedTimers:  svc.Coordinator.ArmedTimers(),
			}
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		if err := svc.Coordinator.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("coordinator stopped", zap.Error(err))
		}
		logger.Info("scheduler shut down")
	},
}
