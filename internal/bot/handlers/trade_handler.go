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

// NewTradeHandler returns a handler for the /trade command:
//
//	/trade @user <your character> for <their character>
//
// The offer is delivered to the counterparty as a DM with accept and
// reject buttons.
func NewTradeHandler(deps HandlerDeps) bot.HandlerFunc {
	return tradeHandler{deps}.Handle
}

type tradeHandler struct {
	deps HandlerDeps
}

const tradeUsage = "Usage: /trade @user <your character> for <their character>"

func (h tradeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "trade")

	user := senderOf(update)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	toUsername, giveName, wantName, ok := parseTradeArgs(commandArgs(update.Message.Text))
	if !ok {
		reply(ctx, b, log, chatID, tradeUsage)
		return
	}

	offer, err := h.deps.Engine.ProposeTrade(ctx, user.ID, user.FirstName, username(user), toUsername, giveName, wantName)
	if err != nil {
		log.WarnContext(ctx, "Trade proposal not created", "error", err, "from", user.ID)
		reply(ctx, b, log, chatID, tradeErrorText(err, h.deps))
		return
	}

	reply(ctx, b, log, chatID, fmt.Sprintf(
		"📨 Trade offer sent to @%s: your %s for their %s. Waiting for a response.",
		toUsername, offer.FromCharName, offer.ToCharName))
}

// parseTradeArgs splits "@user Mine for Theirs". Both character names may
// contain spaces; the last " for " separates them.
func parseTradeArgs(args string) (toUsername, giveName, wantName string, ok bool) {
	fields := strings.SplitN(args, " ", 2)
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "@") {
		return "", "", "", false
	}
	toUsername = strings.TrimPrefix(fields[0], "@")

	rest := strings.TrimSpace(fields[1])
	i := strings.LastIndex(rest, " for ")
	if toUsername == "" || i <= 0 {
		return "", "", "", false
	}
	giveName = strings.TrimSpace(rest[:i])
	wantName = strings.TrimSpace(rest[i+len(" for "):])
	if giveName == "" || wantName == "" {
		return "", "", "", false
	}
	return toUsername, giveName, wantName, true
}

// tradeErrorText maps proposal errors to user-facing text.
func tradeErrorText(err error, deps HandlerDeps) string {
	var notOwned *game.NotOwnedError
	switch {
	case errors.Is(err, game.ErrUnknownUser):
		return "I don't know that user yet. They need to talk to me first."
	case errors.Is(err, game.ErrSelfTrade):
		return "You can't trade with yourself."
	case errors.Is(err, game.ErrUnreachable):
		return "I couldn't reach that user. They need to /start me in private first."
	case errors.As(err, &notOwned):
		if notOwned.Mine {
			return fmt.Sprintf("You don't own %s.", notOwned.Character)
		}
		return fmt.Sprintf("%s doesn't own %s.", notOwned.User, notOwned.Character)
	default:
		return deps.Config.Messages.GeneralError
	}
}
