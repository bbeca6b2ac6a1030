package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/outbox"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler greets the user and offers a share-location keyboard.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)
	h.deps.Recorder.RecordCommandAsync(update.Message.From.ID, cmdStart)

	keyboard := &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: "Share Location 📍", RequestLocation: true}},
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}

	name := update.Message.From.FirstName
	if name == "" {
		name = update.Message.From.Username
	}

	h.deps.Outbox.Enqueue(outbox.Text{
		ChatID: update.Message.Chat.ID,
		Body: fmt.Sprintf("Hi %s! I can help you find the nearest cycle parks. "+
			"Please share your location to get started.", name),
		ReplyMarkup: keyboard,
	})
}
