package game

import (
	"errors"
	"fmt"
)

// Domain errors returned by the Engine. Handlers branch on these with
// errors.Is/errors.As and turn them into friendly chat replies; most are
// expected outcomes of races or user typos, not alarming conditions.
var (
	// ErrNoActiveSpawn means there is nothing to claim in this chat, either
	// because no spawn happened yet or because someone was faster. The
	// expected outcome for every claimant but the first.
	ErrNoActiveSpawn = errors.New("no active spawn")

	// ErrUnknownUser means the named counterparty never registered with the bot.
	ErrUnknownUser = errors.New("unknown user")

	// ErrSelfTrade rejects trades proposed to oneself.
	ErrSelfTrade = errors.New("cannot trade with yourself")

	// ErrSelfGift rejects gifts addressed to oneself.
	ErrSelfGift = errors.New("cannot gift to yourself")

	// ErrCharacterNotOwned means one side of a trade or gift does not own
	// the named character. See NotOwnedError for the details.
	ErrCharacterNotOwned = errors.New("character not owned")

	// ErrTradeNotFound means no trade offer exists with the given ID.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrNotAuthorized means the responding user is not the counterparty
	// the trade offer is addressed to.
	ErrNotAuthorized = errors.New("not authorized to respond to this trade")

	// ErrAlreadyResolved means the trade offer already reached a terminal state.
	ErrAlreadyResolved = errors.New("trade already resolved")

	// ErrCharacterMissing means a character referenced by an accepted trade
	// vanished from the expected collection since the proposal.
	ErrCharacterMissing = errors.New("trade character no longer available")

	// ErrTradeBlocked means an accepted trade cannot complete because one
	// party already owns the character the swap would hand them. The offer
	// stays PENDING; the counterparty may still reject it. See
	// TradeBlockedError for the details.
	ErrTradeBlocked = errors.New("trade cannot complete")

	// ErrRecipientAlreadyOwns means the transfer target already owns a copy
	// of the character; ownership pairs are unique.
	ErrRecipientAlreadyOwns = errors.New("recipient already owns this character")

	// ErrUnreachable means the counterparty could not be notified. For trade
	// proposals the offer has already been rolled back when this is returned.
	ErrUnreachable = errors.New("counterparty unreachable")
)

// NotOwnedError reports which side of a transfer lacks which character.
type NotOwnedError struct {
	// Mine is true when the acting user is the one missing the character.
	Mine bool
	// User is the display form of the other party (e.g. "@handle"); empty
	// when Mine is true.
	User string
	// Character is the name as the user typed it.
	Character string
}

func (e *NotOwnedError) Error() string {
	if e.Mine {
		return fmt.Sprintf("you don't own a character named %q", e.Character)
	}
	return fmt.Sprintf("%s doesn't own a character named %q", e.User, e.Character)
}

func (e *NotOwnedError) Unwrap() error { return ErrCharacterNotOwned }

// TradeBlockedError reports who already owns which character when an
// accepted swap cannot complete.
type TradeBlockedError struct {
	// Owner is the display name of the party who already owns Character.
	Owner string
	// Character is the canonical catalog name.
	Character string
}

func (e *TradeBlockedError) Error() string {
	return fmt.Sprintf("%s already owns %s, the trade cannot complete", e.Owner, e.Character)
}

func (e *TradeBlockedError) Unwrap() error { return ErrTradeBlocked }
