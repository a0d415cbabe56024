package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/replenish/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPOFollowUp sends reminders for delayed purchase orders.
	TaskPOFollowUp = "replenishment:po_followup"
	// TaskReorderScan evaluates stock against reorder points.
	TaskReorderScan = "replenishment:reorder_scan"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// FollowUpPayload configures a follow-up run.
type FollowUpPayload struct {
	MinIntervalHours int `json:"min_interval_hours"`
}

// ReorderScanPayload configures a reorder scan. With AutoOrder set every
// suggestion is turned into a purchase order using Goal.
type ReorderScanPayload struct {
	AutoOrder bool   `json:"auto_order"`
	Goal      string `json:"goal,omitempty"`
}

// NewFollowUpTask constructs the follow-up task.
func NewFollowUpTask(minIntervalHours int) (*asynq.Task, error) {
	data, err := json.Marshal(FollowUpPayload{MinIntervalHours: minIntervalHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPOFollowUp, data), nil
}

// NewReorderScanTask constructs the reorder scan task.
func NewReorderScanTask(autoOrder bool, goal string) (*asynq.Task, error) {
	data, err := json.Marshal(ReorderScanPayload{AutoOrder: autoOrder, Goal: goal})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderScan, data), nil
}
