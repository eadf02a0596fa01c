package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const searchLimit = 20

// NewSearchHandler returns a handler for /search <query>, a case-insensitive
// substring lookup over the character catalog.
func NewSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	return searchHandler{deps}.Handle
}

type searchHandler struct {
	deps HandlerDeps
}

func (h searchHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "search")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	query := commandArgs(update.Message.Text)
	if query == "" {
		reply(ctx, b, log, chatID, "Usage: /search <name>")
		return
	}

	results, err := h.deps.Engine.Search(ctx, query, searchLimit)
	if err != nil {
		log.ErrorContext(ctx, "Search failed", "error", err, "query", query)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(results) == 0 {
		reply(ctx, b, log, chatID, fmt.Sprintf("No characters match %q.", query))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Characters matching %q:\n\n", query)
	for _, ch := range results {
		fmt.Fprintf(&sb, "• %s [%s]", ch.Name, ch.Rarity)
		if ch.Origin != "" {
			fmt.Fprintf(&sb, " from %s", ch.Origin)
		}
		sb.WriteByte('\n')
	}

	reply(ctx, b, log, chatID, sb.String())
}
