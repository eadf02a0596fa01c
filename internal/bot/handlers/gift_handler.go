package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/game"
)

// NewGiftHandler returns a handler for the /gift command:
//
//	/gift @user <character>
//
// Unlike a trade, a gift needs no acceptance and applies immediately.
func NewGiftHandler(deps HandlerDeps) bot.HandlerFunc {
	return giftHandler{deps}.Handle
}

type giftHandler struct {
	deps HandlerDeps
}

const giftUsage = "Usage: /gift @user <character>"

func (h giftHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "gift")

	user := senderOf(update)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	toUsername, charName, ok := parseGiftArgs(commandArgs(update.Message.Text))
	if !ok {
		reply(ctx, b, log, chatID, giftUsage)
		return
	}

	ch, recipient, err := h.deps.Engine.Gift(ctx, user.ID, user.FirstName, toUsername, charName)
	if err != nil {
		log.WarnContext(ctx, "Gift not applied", "error", err, "from", user.ID)
		reply(ctx, b, log, chatID, giftErrorText(err, h.deps))
		return
	}

	reply(ctx, b, log, chatID, fmt.Sprintf(
		"🎁 %s gifted %s to %s!", user.FirstName, ch.Name, recipient.FirstName))
}

func parseGiftArgs(args string) (toUsername, charName string, ok bool) {
	fields := strings.SplitN(args, " ", 2)
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "@") {
		return "", "", false
	}
	toUsername = strings.TrimPrefix(fields[0], "@")
	charName = strings.TrimSpace(fields[1])
	if toUsername == "" || charName == "" {
		return "", "", false
	}
	return toUsername, charName, true
}

func giftErrorText(err error, deps HandlerDeps) string {
	var notOwned *game.NotOwnedError
	switch {
	case errors.Is(err, game.ErrUnknownUser):
		return "I don't know that user yet. They need to talk to me first."
	case errors.Is(err, game.ErrSelfGift):
		return "You can't gift to yourself."
	case errors.Is(err, game.ErrRecipientAlreadyOwns):
		return "They already own that character."
	case errors.As(err, &notOwned):
		return fmt.Sprintf("You don't own %s.", notOwned.Character)
	default:
		return deps.Config.Messages.GeneralError
	}
}
