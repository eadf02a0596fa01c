package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/bot/handlers"
	"github.com/grabzone/waifubot/internal/database"
	"github.com/grabzone/waifubot/internal/source"
)

// Notifier implements the engine's outbound messaging over the Telegram API:
// spawn announcements, direct messages, and trade offer delivery.
type Notifier struct {
	bot          *bot.Bot
	logger       *slog.Logger
	spawnCaption string
	grabButton   string
}

// NewNotifier creates a Notifier. spawnCaption must contain one %s verb for
// the character name; grabButton is the label of the claim button.
func NewNotifier(b *bot.Bot, logger *slog.Logger, spawnCaption, grabButton string) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		bot:          b,
		logger:       logger.With("component", "notifier"),
		spawnCaption: spawnCaption,
		grabButton:   grabButton,
	}
}

// PublishSpawn posts the character photo with a grab button and returns the
// message ID of the announcement.
func (n *Notifier) PublishSpawn(ctx context.Context, chatID int64, ch source.Character) (int, error) {
	msg, err := n.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileString{Data: ch.ImageURL},
		Caption: fmt.Sprintf(n.spawnCaption, ch.Name),
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: n.grabButton, CallbackData: handlers.CallbackGrab}},
			},
		},
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish spawn", "chat_id", chatID, "name", ch.Name, "error", err)
		return 0, fmt.Errorf("failed to publish spawn to chat %d: %w", chatID, err)
	}

	n.logger.DebugContext(ctx, "Spawn published", "chat_id", chatID, "name", ch.Name, "message_id", msg.ID)
	return msg.ID, nil
}

// SendDM sends a plain direct message. Fails when the user never opened a
// private chat with the bot; callers decide whether that matters.
func (n *Notifier) SendDM(ctx context.Context, userID int64, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to DM user %d: %w", userID, err)
	}
	return nil
}

// SendTradeOffer delivers a trade proposal to the counterparty with
// accept/reject buttons. A failure means the proposal was not delivered and
// the engine rolls the offer back.
func (n *Notifier) SendTradeOffer(ctx context.Context, offer *database.TradeOffer, fromFirstName, fromUsername string) error {
	text := fmt.Sprintf(
		"Trade request!\n\n%s (@%s) offers you their %s in exchange for your %s.\n\nDo you accept?",
		fromFirstName, fromUsername, offer.FromCharName, offer.ToCharName)

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: offer.ToUserID,
		Text:   text,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "✅ Accept", CallbackData: handlers.CallbackTradeAccept + offer.TradeID},
					{Text: "❌ Reject", CallbackData: handlers.CallbackTradeReject + offer.TradeID},
				},
			},
		},
	})
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to deliver trade offer", "trade_id", offer.TradeID,
			"to", offer.ToUserID, "error", err)
		return fmt.Errorf("failed to deliver trade offer %s: %w", offer.TradeID, err)
	}

	n.logger.DebugContext(ctx, "Trade offer delivered", "trade_id", offer.TradeID, "to", offer.ToUserID)
	return nil
}
