package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotationSendEmail delivers a sent quotation to the client.
	TaskQuotationSendEmail = "quotation:send-email"
	// TaskPayablesRefreshOverdue recomputes open payables against today's date.
	TaskPayablesRefreshOverdue = "payables:refresh-overdue"
	// TaskIdempotencyCleanup prunes old payment idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// QuotationEmailPayload describes the quotation email to deliver.
type QuotationEmailPayload struct {
	QuotationID int64           `json:"quotation_id"`
	Number      string          `json:"number"`
	Recipient   string          `json:"recipient"`
	ClientName  string          `json:"client_name"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
}

// NewQuotationEmailTask constructs the send-email task.
func NewQuotationEmailTask(payload QuotationEmailPayload) (*asynq.Task, error) {
	if payload.Recipient == "" {
		return nil, fmt.Errorf("jobs: quotation %s has no recipient", payload.Number)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// RefreshOverduePayload carries scheduling metadata.
type RefreshOverduePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewRefreshOverdueTask constructs the overdue refresh task. A zero time
// means "today" at execution.
func NewRefreshOverdueTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(RefreshOverduePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayablesRefreshOverdue, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewTaskByName builds a task with its default payload, for manual triggers.
func NewTaskByName(name string) (*asynq.Task, error) {
	switch name {
	case TaskPayablesRefreshOverdue:
		return NewRefreshOverdueTask(time.Time{})
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(), nil
	default:
		return nil, fmt.Errorf("jobs: unsupported job %s", name)
	}
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
