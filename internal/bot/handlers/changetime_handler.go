package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewChangeTimeHandler returns a handler for the admin-only /changetime
// command, which adjusts how many messages a chat needs between spawns.
// The new threshold applies to counting from now on; chats already past it
// spawn on their next qualifying message.
func NewChangeTimeHandler(deps HandlerDeps) bot.HandlerFunc {
	return changeTimeHandler{deps}.Handle
}

type changeTimeHandler struct {
	deps HandlerDeps
}

func (h changeTimeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "changetime")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	arg := commandArgs(update.Message.Text)
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		reply(ctx, b, log, chatID, "Usage: /changetime <messages between spawns, at least 1>")
		return
	}

	h.deps.Engine.Tracker().SetThreshold(n)
	log.InfoContext(ctx, "Spawn threshold changed", "threshold", n)
	reply(ctx, b, log, chatID, fmt.Sprintf("⏱ Spawn threshold set to %d messages.", n))
}
