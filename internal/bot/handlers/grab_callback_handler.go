package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/game"
)

// NewGrabCallbackHandler returns the handler for the grab button attached
// to spawn announcements. The winner's claim edits the announcement caption
// and drops the button; losers get an ephemeral "too late" answer.
func NewGrabCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return grabCallbackHandler{deps}.Handle
}

type grabCallbackHandler struct {
	deps HandlerDeps
}

func (h grabCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "grab_callback")

	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	msg := cq.Message.Message
	chatID := msg.Chat.ID

	answer := func(text string, alert bool) {
		_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
			Text:            text,
			ShowAlert:       alert,
		})
		if err != nil {
			log.DebugContext(ctx, "Failed to answer callback query", "error", err)
		}
	}

	result, err := h.deps.Engine.Claim(ctx, chatID, cq.From.ID, cq.From.Username, cq.From.FirstName)
	switch {
	case errors.Is(err, game.ErrNoActiveSpawn):
		answer(h.deps.Config.Messages.TooLate, false)
		return
	case err != nil:
		log.ErrorContext(ctx, "Claim failed", "error", err, "chat_id", chatID, "user_id", cq.From.ID)
		answer(h.deps.Config.Messages.GeneralError, true)
		return
	}

	answer("", false)

	caption := fmt.Sprintf("💘 Grabbed by %s!\n%s [%s]",
		cq.From.FirstName, result.Character.Name, result.Character.Rarity)
	if result.AlreadyOwned {
		caption = fmt.Sprintf("💔 %s already owns %s. Nobody takes her home.",
			cq.From.FirstName, result.Character.Name)
	}

	_, err = b.EditMessageCaption(ctx, &bot.EditMessageCaptionParams{
		ChatID:    chatID,
		MessageID: result.MessageID,
		Caption:   caption,
	})
	if err != nil {
		log.DebugContext(ctx, "Failed to edit spawn caption", "error", err, "chat_id", chatID)
	}

	reply(ctx, b, log, chatID, claimText(result, cq.From.FirstName))
}
