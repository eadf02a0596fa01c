package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// haremPageSize caps how many characters one /harem message lists.
const haremPageSize = 50

// NewHaremHandler returns a handler for the /harem command, listing the
// sender's collection under their chosen label.
func NewHaremHandler(deps HandlerDeps) bot.HandlerFunc {
	return haremHandler{deps}.Handle
}

type haremHandler struct {
	deps HandlerDeps
}

func (h haremHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "harem")

	user := senderOf(update)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	entries, err := h.deps.Engine.Collection(ctx, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load collection", "error", err, "user_id", user.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(entries) == 0 {
		reply(ctx, b, log, chatID, h.deps.Config.Messages.EmptyHarem)
		return
	}

	label := "Harem Collection"
	if stats, err := h.deps.Engine.ProfileStats(ctx, user.ID); err == nil {
		label = stats.HaremLabel
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💖 %s's %s (%d)\n\n", user.FirstName, label, len(entries))
	for i, e := range entries {
		if i == haremPageSize {
			fmt.Fprintf(&sb, "… and %d more", len(entries)-haremPageSize)
			break
		}
		fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, e.Name, e.Rarity)
	}

	reply(ctx, b, log, chatID, sb.String())
}
