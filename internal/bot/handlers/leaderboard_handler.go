package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/grabzone/waifubot/internal/game"
)

const leaderboardSize = 10

// NewLeaderboardHandler returns a handler serving both /top (today's
// collectors) and /gtop (all-time). The reply carries inline buttons to
// switch between windows in place.
func NewLeaderboardHandler(deps HandlerDeps) bot.HandlerFunc {
	return leaderboardHandler{deps}.Handle
}

type leaderboardHandler struct {
	deps HandlerDeps
}

func (h leaderboardHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "leaderboard")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	window := game.WindowToday
	if strings.HasPrefix(update.Message.Text, "/gtop") {
		window = game.WindowGlobal
	}

	text, err := leaderboardText(ctx, h.deps, window)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build leaderboard", "error", err, "window", window)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: leaderboardMarkup(window),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send leaderboard", "error", err, "chat_id", chatID)
	}
}

// NewLeaderboardCallbackHandler returns the callback handler for the
// window-switch buttons. It edits the original message in place.
func NewLeaderboardCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return leaderboardCallbackHandler{deps}.Handle
}

type leaderboardCallbackHandler struct {
	deps HandlerDeps
}

func (h leaderboardCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "leaderboard_callback")

	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	answer := func() {
		_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})
		if err != nil {
			log.DebugContext(ctx, "Failed to answer callback query", "error", err)
		}
	}

	window := strings.TrimPrefix(cq.Data, CallbackLeaderboard)
	text, err := leaderboardText(ctx, h.deps, window)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build leaderboard", "error", err, "window", window)
		answer()
		return
	}

	msg := cq.Message.Message
	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ReplyMarkup: leaderboardMarkup(window),
	})
	if err != nil {
		log.DebugContext(ctx, "Failed to edit leaderboard message", "error", err)
	}
	answer()
}

// leaderboardText renders one window of the top-collectors board.
func leaderboardText(ctx context.Context, deps HandlerDeps, window string) (string, error) {
	rows, err := deps.Engine.Leaderboard(ctx, window, leaderboardSize)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return deps.Config.Messages.EmptyBoard, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Top collectors (%s)\n\n", windowTitle(window))
	medals := [...]string{"🥇", "🥈", "🥉"}
	for i, row := range rows {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&sb, "%s %s: %d\n", rank, row.FirstName, row.Count)
	}
	return sb.String(), nil
}

func windowTitle(window string) string {
	switch window {
	case game.WindowToday:
		return "today"
	case game.WindowMonthly:
		return "this month"
	default:
		return "all time"
	}
}

func leaderboardMarkup(active string) models.ReplyMarkup {
	button := func(title, window string) models.InlineKeyboardButton {
		if window == active {
			title = "• " + title + " •"
		}
		return models.InlineKeyboardButton{
			Text:         title,
			CallbackData: CallbackLeaderboard + window,
		}
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			button("Today", game.WindowToday),
			button("Month", game.WindowMonthly),
			button("All time", game.WindowGlobal),
		}},
	}
}
