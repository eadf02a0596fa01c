package handlers

import (
	"log/slog"

	"github.com/grabzone/waifubot/internal/config"
	"github.com/grabzone/waifubot/internal/game"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Engine *game.Engine
}
