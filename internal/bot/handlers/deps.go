package handlers

import (
	"log/slog"

	"github.com/edgard/cycleparksbot/internal/config"
	"github.com/edgard/cycleparksbot/internal/database"
	"github.com/edgard/cycleparksbot/internal/geo"
	"github.com/edgard/cycleparksbot/internal/outbox"
)

// ParkFinder answers k-nearest queries over the loaded park set.
type ParkFinder interface {
	Nearest(lat, lon float64, k int) []geo.Result
}

// Enqueuer accepts outbound messages for asynchronous delivery. Handlers
// never send directly; everything goes through the rate-limited queue.
type Enqueuer interface {
	Enqueue(msg outbox.Message)
}

// UsageRecorder is the analytics surface handlers depend on.
type UsageRecorder interface {
	RecordCommandAsync(userID int64, command string)
	RecordError(rec database.ErrorRecord)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Parks    ParkFinder
	Outbox   Enqueuer
	Recorder UsageRecorder
	Prefs    *Prefs
}
