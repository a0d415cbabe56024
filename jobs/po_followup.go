package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/replenish/internal/jobs"
	"github.com/odyssey-erp/replenish/internal/replenishment"
)

// FollowUpService is the part of replenishment.Service used by FollowUpJob.
type FollowUpService interface {
	FollowUpDelayed(ctx context.Context, minInterval time.Duration) ([]replenishment.SupplierReminder, error)
}

// FollowUpJob reminds suppliers about delayed purchase orders.
type FollowUpJob struct {
	Service FollowUpService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewFollowUpJob initialises the follow-up handler.
func NewFollowUpJob(service FollowUpService, logger *slog.Logger, metrics *jobmetrics.Metrics) *FollowUpJob {
	return &FollowUpJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the follow-up run.
func (j *FollowUpJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("po followup: handler not configured")
	}
	var payload FollowUpPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MinIntervalHours <= 0 {
		payload.MinIntervalHours = 24
	}

	start := j.now()
	tracker := j.metrics().Track(TaskPOFollowUp)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("min_interval_hours", payload.MinIntervalHours))
	logger.Info("starting po followup")

	sent, err := j.Service.FollowUpDelayed(ctx, time.Duration(payload.MinIntervalHours)*time.Hour)
	j.metrics().AddItems(TaskPOFollowUp, "reminders", len(sent))
	if err != nil {
		logger.Error("po followup failed", slog.Int("sent", len(sent)), slog.Any("error", err))
		return err
	}

	logger.Info("completed po followup",
		slog.Int("reminders", len(sent)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *FollowUpJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPOFollowUp))
	}
	return slog.Default().With(slog.String("job", TaskPOFollowUp))
}

func (j *FollowUpJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *FollowUpJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
