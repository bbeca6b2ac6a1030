package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/outbox"
)

// Sender adapts the Telegram bot API to the outbox transport interface.
type Sender struct {
	bot *bot.Bot
}

// NewSender wraps b as an outbox.Sender.
func NewSender(b *bot.Bot) *Sender {
	return &Sender{bot: b}
}

var _ outbox.Sender = (*Sender)(nil)

// SendText delivers a text message, attaching the reply keyboard when set.
func (s *Sender) SendText(ctx context.Context, msg outbox.Text) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      msg.ChatID,
		Text:        msg.Body,
		ReplyMarkup: msg.ReplyMarkup,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendLocation delivers a map pin.
func (s *Sender) SendLocation(ctx context.Context, msg outbox.Location) error {
	_, err := s.bot.SendLocation(ctx, &bot.SendLocationParams{
		ChatID:    msg.ChatID,
		Latitude:  msg.Lat,
		Longitude: msg.Lon,
	})
	if err != nil {
		return fmt.Errorf("send location: %w", err)
	}
	return nil
}

// SendMediaGroup delivers an ordered photo album.
func (s *Sender) SendMediaGroup(ctx context.Context, msg outbox.MediaGroup) error {
	media := make([]models.InputMedia, len(msg.URLs))
	for i, url := range msg.URLs {
		media[i] = &models.InputMediaPhoto{Media: url}
	}
	_, err := s.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID: msg.ChatID,
		Media:  media,
	})
	if err != nil {
		return fmt.Errorf("send media group: %w", err)
	}
	return nil
}
