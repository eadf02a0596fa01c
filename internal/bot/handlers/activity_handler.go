package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewActivityHandler returns the default handler: it counts every
// non-command text message towards the chat's spawn threshold and keeps the
// sender's registration fresh. Registered as the bot's default handler so
// it sees everything no command matched.
func NewActivityHandler(deps HandlerDeps) bot.HandlerFunc {
	return activityHandler{deps}.Handle
}

type activityHandler struct {
	deps HandlerDeps
}

func (h activityHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "activity")

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}
	// Commands are handled by their own handlers and never count.
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	isPrivate := msg.Chat.Type == models.ChatTypePrivate

	err := h.deps.Engine.OnChatActivity(ctx, msg.Chat.ID, msg.From.ID, msg.From.Username, msg.From.FirstName, isPrivate)
	if err != nil {
		log.ErrorContext(ctx, "Failed to process chat activity", "error", err,
			"chat_id", msg.Chat.ID, "user_id", msg.From.ID)
	}
}
