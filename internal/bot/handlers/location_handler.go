package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/outbox"
)

// NewLocationHandler returns the handler for shared-location messages. It
// is installed as the bot's default handler since locations arrive as
// plain (non-command) messages.
func NewLocationHandler(deps HandlerDeps) bot.HandlerFunc {
	return locationHandler{deps}.Handle
}

type locationHandler struct {
	deps HandlerDeps
}

func (h locationHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "location")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	loc := update.Message.Location
	if loc == nil {
		log.DebugContext(ctx, "Ignoring non-location message", "chat_id", update.Message.Chat.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Received user location", "chat_id", chatID, "user_id", userID,
		"lat", loc.Latitude, "lon", loc.Longitude)

	h.deps.Recorder.RecordCommandAsync(userID, cmdNearest)

	limit := h.deps.Prefs.Get(userID)
	results := h.deps.Parks.Nearest(loc.Latitude, loc.Longitude, limit)

	log.InfoContext(ctx, "Retrieved nearest cycle parks", "count", len(results), "limit", limit)

	if len(results) == 0 || results[0].Meters > h.deps.Config.Parks.MaxDistanceMeters {
		h.deps.Outbox.Enqueue(outbox.Text{
			ChatID: chatID,
			Body: fmt.Sprintf("❗️ No cycle parks found within %.0f m of your location. "+
				"For now, only London cycle parks are supported.", h.deps.Config.Parks.MaxDistanceMeters),
		})
		return
	}

	for i, res := range results {
		h.deps.Outbox.Enqueue(outbox.Text{
			ChatID: chatID,
			Body:   fmt.Sprintf("%s nearest cycle parking is within %.0f meters:", ordinal(i+1), res.Meters),
		})
		h.deps.Outbox.Enqueue(outbox.Location{
			ChatID: chatID,
			Lat:    res.Park.Lat,
			Lon:    res.Park.Lon,
		})
		if urls := res.Park.PhotoURLs(); len(urls) > 0 {
			h.deps.Outbox.Enqueue(outbox.MediaGroup{
				ChatID: chatID,
				URLs:   urls,
			})
		}
	}
}

// ordinal renders n as an English ordinal (1st, 2nd, 3rd, 4th, ...).
func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	default:
		return fmt.Sprintf("%dth", n)
	}
}
