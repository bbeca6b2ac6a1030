package tasks

import (
	"context"
	"time"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// ScheduledTask pairs a task function with the interval it runs at.
type ScheduledTask struct {
	Every time.Duration
	Run   ScheduledTaskFunc
}

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks keyed by task name. Intervals come from the analytics configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTask {
	tasks := make(map[string]ScheduledTask)

	tasks["failure_flush"] = ScheduledTask{
		Every: deps.Config.Analytics.FailureFlushInterval,
		Run:   newFailureFlushTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
