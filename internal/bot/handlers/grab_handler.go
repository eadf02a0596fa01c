package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/game"
)

// NewGrabHandler returns a handler for the /grab command, the text fallback
// for the grab button.
func NewGrabHandler(deps HandlerDeps) bot.HandlerFunc {
	return grabHandler{deps}.Handle
}

type grabHandler struct {
	deps HandlerDeps
}

func (h grabHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "grab")

	user := senderOf(update)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	result, err := h.deps.Engine.Claim(ctx, chatID, user.ID, user.Username, user.FirstName)
	switch {
	case errors.Is(err, game.ErrNoActiveSpawn):
		reply(ctx, b, log, chatID, h.deps.Config.Messages.NoSpawn)
		return
	case err != nil:
		log.ErrorContext(ctx, "Claim failed", "error", err, "chat_id", chatID, "user_id", user.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, chatID, claimText(result, user.FirstName))
}

// claimText renders the claim outcome for the chat.
func claimText(result *game.ClaimResult, firstName string) string {
	if result.AlreadyOwned {
		return fmt.Sprintf("%s tried to grab %s, but already has her!", firstName, result.Character.Name)
	}
	return fmt.Sprintf("🎉 Congratulations, %s! %s (%s) joined your harem!",
		firstName, result.Character.Name, result.Character.Rarity)
}
