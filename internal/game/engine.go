// Package game implements the spawn-claim-exchange engine: per-chat spawn
// state, claim arbitration, the two-party trade protocol, gift transfers,
// and leaderboard aggregation. The Telegram layer calls into the Engine and
// renders its results; no transport types leak in here.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/grabzone/waifubot/internal/database"
	"github.com/grabzone/waifubot/internal/source"
)

// Leaderboard windows. The values double as callback-data suffixes.
const (
	WindowGlobal  = "global"
	WindowMonthly = "monthly"
	WindowToday   = "today"
)

const maxLabelLen = 64

// CharacterSource supplies random spawn candidates.
type CharacterSource interface {
	Random(ctx context.Context) (source.Character, error)
}

// Notifier delivers engine-initiated outbound messages. Implemented by the
// Telegram layer; faked in tests.
type Notifier interface {
	// PublishSpawn announces a spawned character in a chat and returns the
	// message ID of the announcement (used to edit the caption on claim).
	PublishSpawn(ctx context.Context, chatID int64, ch source.Character) (int, error)

	// SendDM sends a plain direct message to a user. May fail when the user
	// never opened a private chat with the bot.
	SendDM(ctx context.Context, userID int64, text string) error

	// SendTradeOffer delivers a trade proposal with accept/reject buttons to
	// the counterparty. A failure here means the proposal was not delivered.
	SendTradeOffer(ctx context.Context, offer *database.TradeOffer, fromFirstName, fromUsername string) error
}

// ClaimResult describes the outcome of a successful or already-owned claim.
type ClaimResult struct {
	Character *database.Character
	// AlreadyOwned is set when the claimant already held the character; the
	// session was consumed but no ownership changed.
	AlreadyOwned bool
	// MessageID of the spawn announcement, for caption edits.
	MessageID int
}

// Stats is the per-user profile summary.
type Stats = database.ProfileStats

// Engine ties the tracker, store, character source and notifier together.
type Engine struct {
	logger   *slog.Logger
	store    database.Store
	src      CharacterSource
	notifier Notifier
	tracker  *Tracker
}

// NewEngine creates the game engine. threshold is the initial number of
// qualifying chat messages between spawns.
func NewEngine(logger *slog.Logger, store database.Store, src CharacterSource, notifier Notifier, threshold int) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger.With("component", "game_engine"),
		store:    store,
		src:      src,
		notifier: notifier,
		tracker:  NewTracker(threshold),
	}
}

// Tracker exposes the spawn tracker, mainly for the admin threshold command
// and tests.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// RegisterIdentity registers or refreshes a user. Idempotent: repeated calls
// overwrite username and first name with the latest seen values.
func (e *Engine) RegisterIdentity(ctx context.Context, userID int64, username, firstName string) error {
	return e.store.UpsertUser(ctx, userID, username, firstName)
}

// OnChatActivity processes one non-command text message: registers the
// sender and, for group chats, advances the spawn counter. When the counter
// hits the threshold a spawn is attempted; a failed attempt still consumes
// the cycle and is only logged, per the engine's best-effort spawn policy.
func (e *Engine) OnChatActivity(ctx context.Context, chatID, userID int64, username, firstName string, isPrivate bool) error {
	if err := e.RegisterIdentity(ctx, userID, username, firstName); err != nil {
		return fmt.Errorf("failed to register user %d: %w", userID, err)
	}

	if isPrivate {
		return nil
	}

	if e.tracker.Bump(chatID) {
		if err := e.trySpawn(ctx, chatID); err != nil {
			e.logger.WarnContext(ctx, "Spawn attempt failed, cycle consumed", "chat_id", chatID, "error", err)
		}
	}

	return nil
}

// trySpawn fetches a character, records it in the catalog, publishes it and
// installs the session. No-op when the chat already has an unclaimed spawn.
func (e *Engine) trySpawn(ctx context.Context, chatID int64) error {
	if !e.tracker.BeginSpawn(chatID) {
		e.logger.DebugContext(ctx, "Unclaimed spawn still active, skipping", "chat_id", chatID)
		return nil
	}

	ch, err := e.src.Random(ctx)
	if err != nil {
		e.tracker.AbortSpawn(chatID)
		return fmt.Errorf("character source: %w", err)
	}

	if _, err := e.store.UpsertCharacter(ctx, ch.Name, ch.ImageURL, ch.Rarity, ch.Origin); err != nil {
		e.tracker.AbortSpawn(chatID)
		return fmt.Errorf("catalog upsert: %w", err)
	}

	msgID, err := e.notifier.PublishSpawn(ctx, chatID, ch)
	if err != nil {
		e.tracker.AbortSpawn(chatID)
		return fmt.Errorf("publish spawn: %w", err)
	}

	e.tracker.CompleteSpawn(chatID, Session{
		Name:      ch.Name,
		ImageURL:  ch.ImageURL,
		Rarity:    ch.Rarity,
		Origin:    ch.Origin,
		MessageID: msgID,
	})

	e.logger.InfoContext(ctx, "Character spawned", "chat_id", chatID, "name", ch.Name, "rarity", ch.Rarity)
	return nil
}

// Claim resolves a claim attempt against the chat's active spawn. The chat
// lock is held for the whole check-and-mutate, so concurrent attempts see a
// single winner. ErrNoActiveSpawn is the normal "too late" outcome for
// everyone but the first valid claimant. If the claimant already owns the
// character the session is consumed and the result says so. A store failure
// leaves the session unclaimed for the next attempt.
func (e *Engine) Claim(ctx context.Context, chatID, userID int64, username, firstName string) (*ClaimResult, error) {
	// A grab may be the claimant's first interaction with the bot, so
	// register them before any ownership row can be written. Otherwise the
	// leaderboard join would never see them.
	if err := e.RegisterIdentity(ctx, userID, username, firstName); err != nil {
		return nil, fmt.Errorf("failed to register user %d: %w", userID, err)
	}

	var result *ClaimResult

	err := e.tracker.WithSession(chatID, func(s *Session) error {
		if s == nil || s.Claimed {
			return ErrNoActiveSpawn
		}

		owned, err := e.store.FindOwnedCharacter(ctx, userID, s.Name)
		if err == nil {
			// Nothing to transfer; consume the session so the race ends.
			s.Claimed = true
			result = &ClaimResult{Character: owned, AlreadyOwned: true, MessageID: s.MessageID}
			return nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("ownership check: %w", err)
		}

		ch, err := e.store.GrabCharacter(ctx, userID, s.Name, s.ImageURL, s.Rarity, s.Origin)
		if err != nil {
			return fmt.Errorf("grab: %w", err)
		}

		s.Claimed = true
		result = &ClaimResult{Character: ch, MessageID: s.MessageID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Claim resolved", "chat_id", chatID, "user_id", userID,
		"character", result.Character.Name, "already_owned", result.AlreadyOwned)
	return result, nil
}

// ProposeTrade validates and records a trade offer, then notifies the
// counterparty. If the notification cannot be delivered the offer row is
// rolled back and ErrUnreachable is returned: an offer must never exist
// without a delivered notification, since acceptance depends on the
// counterparty's interaction. Character names are matched case-insensitively
// against each side's collection and stored in canonical catalog form.
func (e *Engine) ProposeTrade(ctx context.Context, fromUserID int64, fromFirstName, fromUsername, toUsername, giveName, wantName string) (*database.TradeOffer, error) {
	recipient, err := e.store.GetUserByUsername(ctx, toUsername)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("@%s: %w", toUsername, ErrUnknownUser)
		}
		return nil, err
	}
	if recipient.UserID == fromUserID {
		return nil, ErrSelfTrade
	}

	mine, err := e.store.FindOwnedCharacter(ctx, fromUserID, giveName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotOwnedError{Mine: true, Character: giveName}
		}
		return nil, err
	}
	theirs, err := e.store.FindOwnedCharacter(ctx, recipient.UserID, wantName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotOwnedError{User: "@" + toUsername, Character: wantName}
		}
		return nil, err
	}

	offer := &database.TradeOffer{
		TradeID:      uuid.NewString(),
		FromUserID:   fromUserID,
		ToUserID:     recipient.UserID,
		FromCharName: mine.Name,
		ToCharName:   theirs.Name,
		Status:       database.TradePending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateTradeOffer(ctx, offer); err != nil {
		return nil, err
	}

	if err := e.notifier.SendTradeOffer(ctx, offer, fromFirstName, fromUsername); err != nil {
		e.logger.WarnContext(ctx, "Trade offer undeliverable, rolling back",
			"trade_id", offer.TradeID, "to", recipient.UserID, "error", err)
		if delErr := e.store.DeleteTradeOffer(ctx, offer.TradeID); delErr != nil {
			e.logger.ErrorContext(ctx, "Failed to roll back undeliverable trade offer",
				"trade_id", offer.TradeID, "error", delErr)
		}
		return nil, fmt.Errorf("@%s: %w", toUsername, ErrUnreachable)
	}

	e.logger.InfoContext(ctx, "Trade proposed", "trade_id", offer.TradeID,
		"from", fromUserID, "to", recipient.UserID,
		"give", offer.FromCharName, "want", offer.ToCharName)
	return offer, nil
}

// RespondTrade applies the counterparty's accept or reject. Acceptance runs
// the atomic four-row swap plus counter bumps; either everything applies or
// nothing does. An accept that would hand either party a character they
// already own fails with a TradeBlockedError and leaves the offer pending,
// so it can still be rejected. The proposer is notified best-effort
// afterwards; a failed notification does not undo a resolved trade.
func (e *Engine) RespondTrade(ctx context.Context, tradeID string, userID int64, responderFirstName string, accept bool) (*database.TradeOffer, error) {
	offer, err := e.store.GetTradeOffer(ctx, tradeID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	if userID != offer.ToUserID {
		return nil, ErrNotAuthorized
	}
	if offer.Status != database.TradePending {
		return nil, ErrAlreadyResolved
	}

	if accept {
		err = e.store.AcceptTrade(ctx, offer)
		var swap *database.SwapConflictError
		switch {
		case errors.As(err, &swap):
			// The offer is still PENDING; report plainly whose ownership
			// blocks it instead of pretending the trade was resolved.
			return nil, e.tradeBlocked(ctx, offer, swap)
		case errors.Is(err, database.ErrConflict):
			return nil, ErrAlreadyResolved
		case errors.Is(err, database.ErrCharacterMissing):
			return nil, fmt.Errorf("%w: %v", ErrCharacterMissing, err)
		case err != nil:
			return nil, err
		}
		offer.Status = database.TradeAccepted

		e.notifyBestEffort(ctx, offer.FromUserID, fmt.Sprintf(
			"✅ Trade accepted! %s took your %s and you received %s.",
			responderFirstName, offer.FromCharName, offer.ToCharName))
	} else {
		err = e.store.RejectTrade(ctx, tradeID)
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, ErrAlreadyResolved
		case err != nil:
			return nil, err
		}
		offer.Status = database.TradeRejected

		e.notifyBestEffort(ctx, offer.FromUserID, fmt.Sprintf(
			"❌ Trade rejected. %s declined your offer of %s for %s.",
			responderFirstName, offer.FromCharName, offer.ToCharName))
	}

	e.logger.InfoContext(ctx, "Trade resolved", "trade_id", tradeID, "status", offer.Status)
	return offer, nil
}

// tradeBlocked resolves a swap conflict into a TradeBlockedError, mapping
// the blocking user ID back to the character the swap would have given them.
func (e *Engine) tradeBlocked(ctx context.Context, offer *database.TradeOffer, swap *database.SwapConflictError) error {
	char := offer.FromCharName
	if swap.UserID == offer.FromUserID {
		char = offer.ToCharName
	}
	owner := "the other party"
	if u, err := e.store.GetUserByID(ctx, swap.UserID); err == nil {
		owner = u.FirstName
	}

	e.logger.InfoContext(ctx, "Trade blocked by existing ownership",
		"trade_id", offer.TradeID, "owner", swap.UserID, "character", char)
	return &TradeBlockedError{Owner: owner, Character: char}
}

// Gift performs the unilateral transfer. The transfer itself is atomic;
// the recipient notification afterwards is best-effort, since by then the
// gift has already happened.
func (e *Engine) Gift(ctx context.Context, fromUserID int64, fromFirstName, toUsername, charName string) (*database.Character, *database.User, error) {
	recipient, err := e.store.GetUserByUsername(ctx, toUsername)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, fmt.Errorf("@%s: %w", toUsername, ErrUnknownUser)
		}
		return nil, nil, err
	}
	if recipient.UserID == fromUserID {
		return nil, nil, ErrSelfGift
	}

	ch, err := e.store.FindOwnedCharacter(ctx, fromUserID, charName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, &NotOwnedError{Mine: true, Character: charName}
		}
		return nil, nil, err
	}

	err = e.store.GiftCharacter(ctx, fromUserID, recipient.UserID, ch.CharID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// Lost a race with another transfer of the same character.
		return nil, nil, &NotOwnedError{Mine: true, Character: charName}
	case errors.Is(err, database.ErrConflict):
		return nil, nil, fmt.Errorf("@%s: %w", toUsername, ErrRecipientAlreadyOwns)
	case err != nil:
		return nil, nil, err
	}

	e.notifyBestEffort(ctx, recipient.UserID, fmt.Sprintf(
		"🎁 %s gifted you %s!", fromFirstName, ch.Name))

	e.logger.InfoContext(ctx, "Gift completed", "from", fromUserID, "to", recipient.UserID, "character", ch.Name)
	return ch, recipient, nil
}

// Collection lists a user's characters ordered by name.
func (e *Engine) Collection(ctx context.Context, userID int64) ([]database.CollectionEntry, error) {
	return e.store.GetCollection(ctx, userID)
}

// Leaderboard returns the top collectors for a window. Unknown windows fall
// back to all-time. An empty board is a valid result.
func (e *Engine) Leaderboard(ctx context.Context, window string, limit int) ([]database.LeaderboardRow, error) {
	return e.store.TopCollectors(ctx, windowCutoff(window, time.Now().UTC()), limit)
}

// windowCutoff maps a leaderboard window to its grab-time cutoff. Zero means
// no cutoff (all-time).
func windowCutoff(window string, now time.Time) time.Time {
	switch window {
	case WindowToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// ProfileStats returns the user's counters, labels and collection size.
func (e *Engine) ProfileStats(ctx context.Context, userID int64) (*Stats, error) {
	stats, err := e.store.GetProfileStats(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrUnknownUser)
		}
		return nil, err
	}
	return stats, nil
}

// Search finds catalog characters by case-insensitive substring.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]database.Character, error) {
	return e.store.SearchCharacters(ctx, query, limit)
}

// SetHaremLabel updates the user's collection label, capped in length.
func (e *Engine) SetHaremLabel(ctx context.Context, userID int64, label string) error {
	return e.store.SetHaremLabel(ctx, userID, capLabel(label))
}

// SetGalleryLabel updates the user's gallery label, capped in length.
func (e *Engine) SetGalleryLabel(ctx context.Context, userID int64, label string) error {
	return e.store.SetGalleryLabel(ctx, userID, capLabel(label))
}

func capLabel(label string) string {
	runes := []rune(label)
	if len(runes) > maxLabelLen {
		return string(runes[:maxLabelLen])
	}
	return label
}

// notifyBestEffort sends a DM and only logs delivery failures.
func (e *Engine) notifyBestEffort(ctx context.Context, userID int64, text string) {
	if err := e.notifier.SendDM(ctx, userID, text); err != nil {
		e.logger.WarnContext(ctx, "Best-effort notification failed", "user_id", userID, "error", err)
	}
}
