package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverviewWarm rebuilds the cached portfolio overview.
	TaskOverviewWarm = "overview:warm"
)

// OverviewWarmPayload describes why an overview warm was requested.
type OverviewWarmPayload struct {
	Reason string `json:"reason"`
}

// NewOverviewWarmTask constructs an Asynq task for the overview warmer.
func NewOverviewWarmTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "schedule"
	}
	data, err := json.Marshal(OverviewWarmPayload{Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("jobs: encode overview warm payload: %w", err)
	}
	return asynq.NewTask(TaskOverviewWarm, data), nil
}
