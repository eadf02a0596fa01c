package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// labelKind selects which display label a /hmode or /imode command updates.
type labelKind int

const (
	labelHarem labelKind = iota
	labelGallery
)

// NewLabelHandler returns a handler updating one of the sender's display
// labels: /hmode renames the collection heading, /imode the inline gallery
// heading.
func NewLabelHandler(deps HandlerDeps, kind labelKind) bot.HandlerFunc {
	return labelHandler{deps: deps, kind: kind}.Handle
}

type labelHandler struct {
	deps HandlerDeps
	kind labelKind
}

func (h labelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "label")

	user := senderOf(update)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	label := commandArgs(update.Message.Text)
	if label == "" {
		usage := "Usage: /hmode <new label>"
		if h.kind == labelGallery {
			usage = "Usage: /imode <new label>"
		}
		reply(ctx, b, log, chatID, usage)
		return
	}

	var err error
	if h.kind == labelGallery {
		err = h.deps.Engine.SetGalleryLabel(ctx, user.ID, label)
	} else {
		err = h.deps.Engine.SetHaremLabel(ctx, user.ID, label)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to update label", "error", err, "user_id", user.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, chatID, fmt.Sprintf("✨ Label updated to %q.", label))
}
