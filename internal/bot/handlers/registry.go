package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// Callback data prefixes shared between the code that attaches inline
// buttons and the callback handlers that route on them.
const (
	CallbackGrab        = "grab_waifu"
	CallbackLeaderboard = "lb_"
	CallbackTradeAccept = "trade_accept_"
	CallbackTradeReject = "trade_reject_"
)

// RegisteredHandler represents a command handler with its registration
// pattern and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot
// commands and callback handlers.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(pattern string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) {
		handlers["/"+pattern] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
		}
	}

	command("start", NewStartHandler(deps))
	command("help", NewHelpHandler(deps))
	command("grab", NewGrabHandler(deps))
	command("harem", NewHaremHandler(deps))
	command("search", NewSearchHandler(deps))
	command("trade", NewTradeHandler(deps))
	command("gift", NewGiftHandler(deps))
	command("status", NewStatusHandler(deps))
	command("top", NewLeaderboardHandler(deps))
	command("gtop", NewLeaderboardHandler(deps))
	command("hmode", NewLabelHandler(deps, labelHarem))
	command("imode", NewLabelHandler(deps, labelGallery))
	command("changetime", NewChangeTimeHandler(deps), AdminOnly(deps))

	handlers["cb:grab"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     CallbackGrab,
		Handler:     NewGrabCallbackHandler(deps),
		MatchType:   tgbot.MatchTypeExact,
	}
	handlers["cb:leaderboard"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     CallbackLeaderboard,
		Handler:     NewLeaderboardCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}
	handlers["cb:trade"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     "trade_",
		Handler:     NewTradeCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
