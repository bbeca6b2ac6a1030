// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/database"
)

// Recover creates a middleware that catches panics from downstream
// handlers, logs them, and queues an error record for the periodic durable
// flush. A panicking handler must never take the bot down.
func Recover(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}

				log := deps.Logger.With("middleware", "recover")
				log.ErrorContext(ctx, "Recovered from panic in handler", "panic", p, "update_id", update.ID)

				updateStr := "<unserializable update>"
				if data, err := json.Marshal(update); err == nil {
					updateStr = string(data)
				}

				deps.Recorder.RecordError(database.ErrorRecord{
					Timestamp:     time.Now().UTC(),
					ExceptionType: fmt.Sprintf("%T", p),
					ErrorMessage:  fmt.Sprint(p),
					UpdateStr:     updateStr,
				})
			}()

			next(ctx, bot, update)
		}
	}
}
