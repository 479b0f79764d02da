package scheduler

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"radiorec/internal/app/metrics"
	"radiorec/internal/app/model"
	"radiorec/internal/app/recurrence"
	"radiorec/internal/app/repository"
)

// RecurrenceSweep is the fallback generator for recurring series: for every
// template it computes the occurrence after the latest generated instance
// and inserts it unless it already exists, is past the series end, or lies
// beyond the lookahead horizon. The completion path in the capture worker
// generates instances too; both triggers share the same conditional insert,
// so running concurrently at most one instance is created.
func (c *Coordinator) RecurrenceSweep(ctx context.Context) {
	templates, err := c.store.FindTemplates(ctx)
	if err != nil {
		c.logger.Error("template scan failed", zap.Error(err))
		return
	}
	templates = lo.Filter(templates, func(t *model.Job, _ int) bool {
		return t.RecurrenceType != ""
	})

	now := c.now()
	horizon := now.Add(c.tuning.Lookahead)

	for _, template := range templates {
		base := template.StartTime
		latest, err := c.store.FindLatestInstance(ctx, template.Name, template.StationID)
		switch {
		case err == nil:
			base = latest.StartTime
		case errors.Is(err, repository.ErrNotFound):
			// No instances yet, seed from the template itself.
		default:
			c.logger.Error("latest-instance lookup failed",
				zap.String("series", template.Name), zap.Error(err))
			continue
		}

		next, err := recurrence.Next(base, template.RecurrenceType)
		if err != nil {
			// Unknown type: abandon this template only, the sweep goes on.
			c.logger.Error("bad recurrence template",
				zap.Int64("template_id", template.ID), zap.Error(err))
			continue
		}

		if template.RecurrenceEnd != nil && next.After(*template.RecurrenceEnd) {
			continue
		}
		if next.After(horizon) {
			continue
		}

		created, err := c.store.InsertInstanceIfAbsent(ctx, template.NextInstance(next))
		if err != nil {
			c.logger.Error("failed to insert recurring instance",
				zap.String("series", template.Name), zap.Error(err))
			continue
		}
		if created {
			metrics.RecurrenceInstancesTotal.WithLabelValues("sweep").Inc()
			c.logger.Info("created missing recurring instance",
				zap.String("series", template.Name), zap.Time("start", next))
		}
	}
}
