package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/outbox"
)

const helpText = "🤖 Available Commands:\n" +
	"/start - Start the bot\n" +
	"/limit <number> - Set number of returned closest parking locations\n" +
	"/help - Show this help message\n"

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Help handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /help command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)
	h.deps.Recorder.RecordCommandAsync(update.Message.From.ID, cmdHelp)

	h.deps.Outbox.Enqueue(outbox.Text{
		ChatID: update.Message.Chat.ID,
		Body:   helpText,
	})
}
