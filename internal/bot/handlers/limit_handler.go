package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/outbox"
)

// NewLimitHandler returns a handler for the /limit command.
func NewLimitHandler(deps HandlerDeps) bot.HandlerFunc {
	return limitHandler{deps}.Handle
}

// limitHandler updates the user's result-count preference, clamping the
// requested value to [1, max]. A malformed argument changes nothing and
// echoes the effective limit back.
type limitHandler struct {
	deps HandlerDeps
}

func (h limitHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "limit")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Limit handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling /limit command", "chat_id", chatID, "user_id", userID, "text", update.Message.Text)
	h.deps.Recorder.RecordCommandAsync(userID, cmdLimit)

	current := h.deps.Prefs.Get(userID)
	rest := strings.TrimPrefix(update.Message.Text, "/limit")
	// Group chats address commands as /limit@botname; the mention is not
	// the argument.
	if strings.HasPrefix(rest, "@") {
		if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
			rest = rest[i:]
		} else {
			rest = ""
		}
	}
	args := strings.Fields(rest)
	if len(args) == 0 {
		h.reply(chatID, fmt.Sprintf(
			"Send me preferred number of closest locations to show, e.g. /limit 3. Current limit is %d.", current))
		return
	}

	requested, err := strconv.Atoi(args[0])
	if err != nil {
		h.reply(chatID, fmt.Sprintf(
			"❌ That doesn't look like a valid number. Locations limit is %d.", current))
		return
	}

	maxLimit := h.deps.Config.Parks.MaxLimit
	switch {
	case requested > maxLimit:
		h.deps.Prefs.Set(userID, maxLimit)
		h.reply(chatID, fmt.Sprintf("❌ Location limit is set to %d - this is maximum!", maxLimit))
	case requested < 1:
		h.deps.Prefs.Set(userID, 1)
		h.reply(chatID, "✅ Location limit is set to 1 - this is minimum!")
	default:
		h.deps.Prefs.Set(userID, requested)
		h.reply(chatID, fmt.Sprintf("✅ You set locations limit to %d", requested))
	}
}

func (h limitHandler) reply(chatID int64, body string) {
	h.deps.Outbox.Enqueue(outbox.Text{ChatID: chatID, Body: body})
}
