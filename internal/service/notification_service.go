package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/pkg/config"
	"github.com/cems-project/cems-api/pkg/jobs"
	"github.com/cems-project/cems-api/pkg/mailer"
)

const notificationJobType = "notification"

// NotificationDispatcher delivers NotificationCommands through a background
// worker queue. Dispatch is called only after the originating transaction has
// committed; delivery failures are retried and then logged, never surfaced to
// the API caller.
type NotificationDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationDispatcher builds the dispatcher and its queue.
func NewNotificationDispatcher(notifier mailer.Notifier, cfg config.NotifyConfig, logger *zap.Logger) *NotificationDispatcher {
	d := &NotificationDispatcher{logger: logger}
	d.queue = jobs.NewQueue("notifications", notificationHandler(notifier), jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the queue workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the queue workers.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch enqueues each command. A full or stopped queue is logged and
// skipped; notifications are best-effort.
func (d *NotificationDispatcher) Dispatch(commands []models.NotificationCommand) {
	for _, cmd := range commands {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    notificationJobType,
			Payload: cmd,
		}
		if err := d.queue.Enqueue(job); err != nil {
			d.logger.Error("notification dropped",
				zap.String("recipient", cmd.Recipient),
				zap.String("subject", cmd.Subject),
				zap.Error(err),
			)
		}
	}
}

func notificationHandler(notifier mailer.Notifier) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		cmd, ok := job.Payload.(models.NotificationCommand)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return notifier.Notify(ctx, cmd.Recipient, cmd.Subject, cmd.Body)
	}
}
