package cancel

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"radiorec/internal/app"
	"radiorec/internal/app/bus"
	"radiorec/internal/app/common"
	"radiorec/internal/config"
)

var jobID int64

func init() {
	Cmd.Flags().Int64VarP(&jobID, "job", "j", 0, "job id to cancel")
	Cmd.MarkFlagRequired("job")
}

// Cmd represents the cancel command
var Cmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a scheduled capture job",
	Long: `Cancel a scheduled capture job.

Only jobs that have not started can be cancelled; a running capture keeps
recording until its deadline.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		logger := common.MustNewLogger(cfg.Development)
		defer logger.Sync()

		store, err := app.NewStore(cfg)
		if err != nil {
			log.Fatalf("failed to open job store: %v", err)
		}

		ctx := context.Background()
		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			log.Fatalf("failed to read job %d: %v", jobID, err)
		}

		cancelled, err := job.State.Cancel()
		if err != nil {
			log.Fatalf("cannot cancel job %d: %v", jobID, err)
		}
		if err := store.UpdateJobState(ctx, jobID, cancelled); err != nil {
			log.Fatalf("failed to cancel job %d: %v", jobID, err)
		}

		mbus := bus.New(cfg.RedisAddr, logger)
		defer mbus.Close()
		if err := mbus.Publish(ctx, bus.TopicCancel, bus.CancelCommand{JobID: jobID}); err != nil {
			// CANCELLED is already durable; the coordinator refuses to start
			// terminal jobs even if its timers survive.
			log.Fatalf("job %d cancelled but notification failed: %v", jobID, err)
		}
		fmt.Printf("cancelled job %d (%s)\n", jobID, job.Name)
	},
}
