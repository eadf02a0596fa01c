package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/game"
)

// NewStatusHandler returns a handler for /status, the sender's profile
// summary.
func NewStatusHandler(deps HandlerDeps) bot.HandlerFunc {
	return statusHandler{deps}.Handle
}

type statusHandler struct {
	deps HandlerDeps
}

func (h statusHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "status")

	user := senderOf(update)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	stats, err := h.deps.Engine.ProfileStats(ctx, user.ID)
	if err != nil {
		if errors.Is(err, game.ErrUnknownUser) {
			reply(ctx, b, log, chatID, h.deps.Config.Messages.NotRegistered)
			return
		}
		log.ErrorContext(ctx, "Failed to load profile stats", "error", err, "user_id", user.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, chatID, fmt.Sprintf(
		"📊 %s's profile\n\n"+
			"💖 %s: %d characters\n"+
			"🔄 Trades done: %d\n"+
			"🎁 Gifts sent: %d\n"+
			"🎀 Gifts received: %d",
		user.FirstName, stats.HaremLabel, stats.CollectionCount,
		stats.TradesDone, stats.GiftsSent, stats.GiftsReceived))
}
