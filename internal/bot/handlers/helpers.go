package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// reply sends a plain text message to the update's chat, logging failures.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

// commandArgs returns the text after the command itself, trimmed.
// "/trade @v Asuna for Emilia" -> "@v Asuna for Emilia".
func commandArgs(text string) string {
	if i := strings.IndexByte(text, ' '); i != -1 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

// senderOf extracts the message's sender, or nil for non-message updates.
func senderOf(update *models.Update) *models.User {
	if update.Message == nil {
		return nil
	}
	return update.Message.From
}

// username returns the user's username or an empty string.
func username(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
