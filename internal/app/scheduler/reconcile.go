package scheduler

import (
	"context"
	"os"

	"go.uber.org/zap"

	"radiorec/internal/app/metrics"
	"radiorec/internal/app/model"
)

// ReconcileOnStartup re-derives correct job state after an unclean shutdown.
// The evidence is wall clock versus stored end_time plus output-file
// presence; the crashed process itself never detects anything.
//
// Two classes are handled:
//   - jobs whose window contains now and are still startable: re-issue the
//     start, tagging jobs that were already RECORDING as interrupted;
//   - RECORDING jobs whose end_time fell inside the lookback window: the
//     capture died mid-flight, resolve to PARTIAL (output exists) or FAILED.
func (c *Coordinator) ReconcileOnStartup(ctx context.Context) {
	now := c.now()

	active, err := c.store.FindActiveWindow(ctx, now)
	if err != nil {
		c.logger.Error("reconciliation scan failed", zap.Error(err))
	} else {
		for _, job := range active {
			if job.State.Phase == model.PhaseRecording {
				c.logger.Info("found interrupted recording, restarting",
					zap.Int64("job_id", job.ID), zap.String("name", job.Name))
				interrupted, err := job.State.MarkInterrupted()
				if err == nil {
					if err := c.store.UpdateJobState(ctx, job.ID, interrupted); err != nil {
						c.logger.Error("failed to mark interrupted",
							zap.Int64("job_id", job.ID), zap.Error(err))
						continue
					}
				}
			} else {
				c.logger.Info("found active job",
					zap.Int64("job_id", job.ID), zap.String("name", job.Name))
			}
			c.Start(ctx, job.ID)
			metrics.ReconciledJobsTotal.WithLabelValues("restarted").Inc()
		}
	}

	abandoned, err := c.store.FindAbandoned(ctx, now, c.tuning.Lookback)
	if err != nil {
		c.logger.Error("abandoned-job scan failed", zap.Error(err))
		return
	}
	for _, job := range abandoned {
		c.resolveAbandoned(ctx, job)
	}
}

// resolveAbandoned finalizes a recording whose process died while services
// were down and whose window has since closed.
func (c *Coordinator) resolveAbandoned(ctx context.Context, job *model.Job) {
	state, err := job.State.MarkInterrupted()
	if err != nil {
		c.logger.Error("cannot mark abandoned job interrupted",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	if size, ok := outputFileSize(job.FilePath); ok {
		final, err := state.Succeed()
		if err != nil {
			c.logger.Error("cannot resolve abandoned job",
				zap.Int64("job_id", job.ID), zap.Error(err))
			return
		}
		if err := c.store.UpdateJobOutput(ctx, job.ID, final, job.FilePath, size); err != nil {
			c.logger.Error("failed to persist PARTIAL",
				zap.Int64("job_id", job.ID), zap.Error(err))
			return
		}
		metrics.ReconciledJobsTotal.WithLabelValues("partial").Inc()
		c.logger.Info("abandoned job resolved as PARTIAL",
			zap.Int64("job_id", job.ID), zap.Int64("file_size", size))
		return
	}

	final, err := state.Fail("process died mid-capture, no output file")
	if err != nil {
		c.logger.Error("cannot fail abandoned job",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	if err := c.store.UpdateJobState(ctx, job.ID, final); err != nil {
		c.logger.Error("failed to persist FAILED",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ReconciledJobsTotal.WithLabelValues("failed").Inc()
	c.logger.Info("abandoned job resolved as FAILED (no output file)",
		zap.Int64("job_id", job.ID))
}

func outputFileSize(path string) (int64, bool) {
	if path == "" {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
