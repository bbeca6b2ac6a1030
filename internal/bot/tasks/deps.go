// Package tasks implements scheduled background tasks for the bot, along
// with their dependencies and registration mechanism.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/cycleparksbot/internal/config"
)

// DurableFlusher moves buffered analytics out of Redis and process memory
// into the durable store.
type DurableFlusher interface {
	FlushFailuresAndErrors(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Recorder DurableFlusher
	Config   *config.Config
}
