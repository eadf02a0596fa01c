// Package tasks implements scheduled tasks for the bot: task definitions,
// dependencies, and registration.
package tasks

import (
	"log/slog"

	"github.com/grabzone/waifubot/internal/config"
	"github.com/grabzone/waifubot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
