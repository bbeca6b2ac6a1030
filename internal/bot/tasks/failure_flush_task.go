package tasks

import (
	"context"
	"fmt"
	"time"
)

// newFailureFlushTask creates the scheduled task that sweeps send-failure
// counters and queued handler errors from Redis and memory into SQLite.
func newFailureFlushTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "failure_flush")

	return func(ctx context.Context) error {
		log.DebugContext(ctx, "Starting failure flush task...")
		startTime := time.Now()

		err := deps.Recorder.FlushFailuresAndErrors(ctx)

		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "Failure flush task failed", "error", err, "duration", duration)
			return fmt.Errorf("failure flush failed: %w", err)
		}

		log.DebugContext(ctx, "Failure flush task completed", "duration", duration)
		return nil
	}
}
