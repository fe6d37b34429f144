// Package jobs runs the scheduled background work of the order API.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jcmexdev/order-pipeline/internal/order-api/core/ports"
)

// batchSize bounds how many orders a single run re-enqueues.
const batchSize = 100

// RepublishJob re-enqueues orders that are still CREATED some time after
// they were stored, which happens when the publish after the store write
// failed or the message was dropped.
type RepublishJob struct {
	service   ports.OrderService
	schedule  string
	olderThan time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewRepublishJob accepts six-field cron specs as well as descriptors such
// as "@every 1m".
func NewRepublishJob(service ports.OrderService, schedule string, olderThan time.Duration, logger *slog.Logger) *RepublishJob {
	return &RepublishJob{
		service:   service,
		schedule:  schedule,
		olderThan: olderThan,
		timeout:   30 * time.Second,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger.With("component", "republish_job"),
	}
}

func (j *RepublishJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("republish job started", "schedule", j.schedule, "older_than", j.olderThan)
	return nil
}

// Stop waits for a run in progress to finish.
func (j *RepublishJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("republish job stopped")
}

func (j *RepublishJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.service.RepublishStale(ctx, j.olderThan, batchSize)
	if err != nil {
		j.logger.ErrorContext(ctx, "republish job failed", "republished", n, "error", err)
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "republish job finished", "republished", n)
	}
}
