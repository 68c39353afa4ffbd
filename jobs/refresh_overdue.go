package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

// OverdueRefresher recomputes open payables for a given day.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, today time.Time) (int, error)
}

// RefreshOverdueJob handles payables:refresh-overdue tasks.
type RefreshOverdueJob struct {
	Payables OverdueRefresher
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewRefreshOverdueJob wires dependencies for the refresh handler.
func NewRefreshOverdueJob(payables OverdueRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *RefreshOverdueJob {
	return &RefreshOverdueJob{Payables: payables, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle runs the refresh for the scheduled day, or today when none is set.
func (j *RefreshOverdueJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Payables == nil {
		return errors.New("refresh overdue: handler not configured")
	}
	var payload RefreshOverduePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	today := payload.ScheduledFor
	if today.IsZero() {
		today = j.clock()
	}

	tracker := j.Metrics.Track(TaskPayablesRefreshOverdue)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	changed, err := j.Payables.RefreshOverdue(ctx, today)
	if err != nil {
		logger.Error("refresh overdue payables", slog.Any("error", err))
		return err
	}
	logger.Info("refreshed overdue payables", slog.String("job", TaskPayablesRefreshOverdue),
		slog.String("day", today.Format(time.DateOnly)), slog.Int("changed", changed))
	return nil
}
