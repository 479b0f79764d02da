package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"radiorec/internal/app"
	"radiorec/internal/app/bus"
	"radiorec/internal/app/common"
	"radiorec/internal/app/model"
	"radiorec/internal/config"
)

var (
	name          string
	stationID     int64
	startAt       string
	duration      time.Duration
	format        string
	bitrate       int
	podcastID     int64
	recurrence    string
	recurrenceEnd string
)

func init() {
	Cmd.Flags().StringVarP(&name, "name", "n", "", "job name, also the recording file prefix")
	Cmd.Flags().Int64VarP(&stationID, "station", "s", 0, "station id to capture")
	Cmd.Flags().StringVarP(&startAt, "start", "t", "", "start time, RFC3339 (e.g. 2026-01-02T15:04:05Z)")
	Cmd.Flags().DurationVarP(&duration, "duration", "d", time.Hour, "capture duration (e.g. 90m)")
	Cmd.Flags().StringVarP(&format, "format", "f", "mp3", "output format: mp3, aac, m4a or mp4")
	Cmd.Flags().IntVarP(&bitrate, "bitrate", "b", 0, "re-encode bitrate in kbit/s, 0 keeps the encoder default")
	Cmd.Flags().Int64VarP(&podcastID, "podcast", "p", 0, "podcast id to publish episodes to")
	Cmd.Flags().StringVarP(&recurrence, "recur", "r", "", "recurrence: daily, weekdays, weekends, weekly or monthly")
	Cmd.Flags().StringVarP(&recurrenceEnd, "recur-end", "e", "", "last date the series may start, RFC3339")

	Cmd.MarkFlagRequired("name")
	Cmd.MarkFlagRequired("station")
	Cmd.MarkFlagRequired("start")
}

// Cmd represents the schedule command
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a capture job",
	Long: `Schedule a capture job.

Persists the job and notifies the coordinator. With --recur the job is
stored as a recurrence template; the scheduler generates its instances.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		logger := common.MustNewLogger(cfg.Development)
		defer logger.Sync()

		start, err := time.Parse(time.RFC3339, startAt)
		if err != nil {
			log.Fatalf("invalid --start: %v", err)
		}

		job := &model.Job{
			Name:            name,
			StationID:       stationID,
			StartTime:       start,
			EndTime:         start.Add(duration),
			DurationSeconds: int(duration.Seconds()),
			State:           model.Scheduled(),
			Format:          format,
			Bitrate:         bitrate,
			LocalStorage:    model.StoragePending,
			RemoteStorage:   model.StoragePending,
		}
		if podcastID != 0 {
			job.PodcastID = &podcastID
		}
		if recurrence != "" {
			job.IsRecurring = true
			job.RecurrenceType = recurrence
			if recurrenceEnd != "" {
				end, err := time.Parse(time.RFC3339, recurrenceEnd)
				if err != nil {
					log.Fatalf("invalid --recur-end: %v", err)
				}
				job.RecurrenceEnd = &end
			}
		}

		store, err := app.NewStore(cfg)
		if err != nil {
			log.Fatalf("failed to open job store: %v", err)
		}

		ctx := context.Background()
		id, err := store.InsertJob(ctx, job)
		if err != nil {
			log.Fatalf("failed to insert job: %v", err)
		}

		if job.IsRecurring {
			fmt.Printf("created recurrence template %d (%s %s)\n", id, name, recurrence)
			return
		}

		mbus := bus.New(cfg.RedisAddr, logger)
		defer mbus.Close()
		err = mbus.Publish(ctx, bus.TopicSchedule, bus.ScheduleCommand{
			JobID:     id,
			StartTime: job.StartTime,
			EndTime:   job.EndTime,
		})
		if err != nil {
			// The job row exists; the coordinator's grace-window scan will
			// still pick it up at start time.
			log.Fatalf("job %d saved but schedule notification failed: %v", id, err)
		}
		fmt.Printf("scheduled job %d (%s at %s for %s)\n", id, name, start.Format(time.RFC3339), duration)
	},
}
