package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/database"
	"github.com/grabzone/waifubot/internal/game"
)

// NewTradeCallbackHandler returns the handler for the accept and reject
// buttons on a trade offer DM. Only the counterparty may resolve the offer,
// and only once.
func NewTradeCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return tradeCallbackHandler{deps}.Handle
}

type tradeCallbackHandler struct {
	deps HandlerDeps
}

func (h tradeCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "trade_callback")

	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	msg := cq.Message.Message

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

	var (
		tradeID string
		accept  bool
	)
	switch {
	case strings.HasPrefix(cq.Data, CallbackTradeAccept):
		tradeID = strings.TrimPrefix(cq.Data, CallbackTradeAccept)
		accept = true
	case strings.HasPrefix(cq.Data, CallbackTradeReject):
		tradeID = strings.TrimPrefix(cq.Data, CallbackTradeReject)
	default:
		answer("", false)
		return
	}

	offer, err := h.deps.Engine.RespondTrade(ctx, tradeID, cq.From.ID, cq.From.FirstName, accept)
	var blocked *game.TradeBlockedError
	switch {
	case errors.As(err, &blocked):
		answer(fmt.Sprintf("This trade can no longer complete: %s already owns %s. You can still reject it.",
			blocked.Owner, blocked.Character), true)
		return
	case errors.Is(err, game.ErrTradeNotFound):
		answer("This trade offer no longer exists.", true)
		return
	case errors.Is(err, game.ErrNotAuthorized):
		answer("This trade isn't yours to resolve.", true)
		return
	case errors.Is(err, game.ErrAlreadyResolved):
		answer("This trade was already resolved.", true)
		return
	case errors.Is(err, game.ErrCharacterMissing):
		answer("The trade fell through: a character changed hands in the meantime.", true)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to resolve trade", "error", err, "trade_id", tradeID)
		answer(h.deps.Config.Messages.GeneralError, true)
		return
	}

	answer("", false)

	text := fmt.Sprintf("❌ Trade rejected: %s for %s.", offer.FromCharName, offer.ToCharName)
	if offer.Status == database.TradeAccepted {
		text = fmt.Sprintf("✅ Trade complete! You gave %s and received %s.",
			offer.ToCharName, offer.FromCharName)
	}

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      text,
	})
	if err != nil {
		log.DebugContext(ctx, "Failed to edit trade offer message", "error", err, "trade_id", tradeID)
	}
}
