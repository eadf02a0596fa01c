package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors returned by Store implementations. Callers are expected
// to branch on these with errors.Is; anything else is a storage failure.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation lost a race or would violate a
	// uniqueness invariant (duplicate ownership, already-resolved trade).
	ErrConflict = errors.New("conflict")

	// ErrCharacterMissing indicates a character referenced by a trade offer
	// is no longer where the offer expects it (renamed, gifted away).
	ErrCharacterMissing = errors.New("character missing")

	// ErrSwapConflict indicates a trade swap cannot complete because a
	// recipient already owns the character the swap would hand them. Unlike
	// ErrConflict this does not mean the offer lost a race; it stays PENDING.
	ErrSwapConflict = errors.New("swap conflict")
)

// SwapConflictError identifies which recipient already owns which character
// when a trade swap fails. Unwraps to ErrSwapConflict.
type SwapConflictError struct {
	UserID int64
	CharID int64
}

func (e *SwapConflictError) Error() string {
	return fmt.Sprintf("user %d already owns character %d", e.UserID, e.CharID)
}

func (e *SwapConflictError) Unwrap() error { return ErrSwapConflict }

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertUser registers or refreshes a user and ensures a profile row
	// exists. Registration is idempotent: username and first name are
	// overwritten with the latest seen values.
	UpsertUser(ctx context.Context, userID int64, username, firstName string) error

	// GetUserByUsername resolves a Telegram username (without the @),
	// case-insensitively. Returns ErrNotFound for users that never registered.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByID retrieves a registered user by ID.
	GetUserByID(ctx context.Context, userID int64) (*User, error)

	// UpsertCharacter inserts or refreshes a catalog entry keyed by name and
	// returns its char_id. Image, rarity and origin are last-write-wins.
	UpsertCharacter(ctx context.Context, name, imageURL, rarity, origin string) (int64, error)

	// GetCharacterByName retrieves a catalog entry by exact name.
	GetCharacterByName(ctx context.Context, name string) (*Character, error)

	// FindOwnedCharacter locates a character owned by userID, matching the
	// name case-insensitively. Returns ErrNotFound when the user does not
	// own a character of that name.
	FindOwnedCharacter(ctx context.Context, userID int64, name string) (*Character, error)

	// GrabCharacter records a successful claim: it upserts the catalog row,
	// inserts the ownership record and returns the character, all in one
	// transaction. Returns ErrConflict if the user already owns it.
	GrabCharacter(ctx context.Context, userID int64, name, imageURL, rarity, origin string) (*Character, error)

	// GiftCharacter atomically moves one ownership record from one user to
	// another and bumps the gift counters on both profiles.
	GiftCharacter(ctx context.Context, fromUserID, toUserID, charID int64) error

	// CreateTradeOffer inserts a new PENDING trade offer.
	CreateTradeOffer(ctx context.Context, offer *TradeOffer) error

	// DeleteTradeOffer removes an offer row. Only used to roll back a
	// proposal whose notification could not be delivered.
	DeleteTradeOffer(ctx context.Context, tradeID string) error

	// GetTradeOffer retrieves an offer by ID. Returns ErrNotFound.
	GetTradeOffer(ctx context.Context, tradeID string) (*TradeOffer, error)

	// RejectTrade flips a PENDING offer to REJECTED. Returns ErrConflict if
	// the offer is already resolved.
	RejectTrade(ctx context.Context, tradeID string) error

	// AcceptTrade flips a PENDING offer to ACCEPTED and performs the
	// four-row ownership swap plus both trades_done increments as a single
	// transaction. Returns ErrConflict if the offer is already resolved,
	// ErrCharacterMissing if either side's character is no longer owned by
	// the expected party, and a SwapConflictError if a recipient already
	// owns the character coming their way; in all three cases nothing is
	// applied and the offer keeps its prior status.
	AcceptTrade(ctx context.Context, offer *TradeOffer) error

	// GetCollection lists a user's characters ordered by name.
	GetCollection(ctx context.Context, userID int64) ([]CollectionEntry, error)

	// SearchCharacters finds catalog entries whose name contains the query,
	// case-insensitively.
	SearchCharacters(ctx context.Context, query string, limit int) ([]Character, error)

	// TopCollectors aggregates ownership counts per user, descending. A zero
	// since means all-time; otherwise only grabs at or after since count.
	// An empty result is a valid outcome, not an error.
	TopCollectors(ctx context.Context, since time.Time, limit int) ([]LeaderboardRow, error)

	// GetProfileStats returns counters, labels and collection size for a user.
	GetProfileStats(ctx context.Context, userID int64) (*ProfileStats, error)

	// SetHaremLabel updates the user's collection display label.
	SetHaremLabel(ctx context.Context, userID int64, label string) error

	// SetGalleryLabel updates the user's inline gallery display label.
	SetGalleryLabel(ctx context.Context, userID int64, label string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// isUniqueViolation reports whether err is a SQLite uniqueness violation.
// The modernc driver exposes no typed error for this, so match the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rollbackOnError rolls back tx unless it has already been committed.
func (s *sqlxStore) rollbackOnError(ctx context.Context, tx *sqlx.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) UpsertUser(ctx context.Context, userID int64, username, firstName string) error {
	if userID == 0 {
		return fmt.Errorf("user_id cannot be zero")
	}

	now := time.Now().UTC()
	uname := sql.NullString{String: username, Valid: username != ""}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollbackOnError(ctx, tx)

	_, err = tx.ExecContext(ctx, `
        INSERT INTO users (user_id, username, first_name, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (user_id) DO UPDATE SET
            username   = excluded.username,
            first_name = excluded.first_name,
            updated_at = excluded.updated_at;
    `, userID, uname, firstName, now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting user", "user_id", userID, "error", err)
		return fmt.Errorf("failed to upsert user %d: %w", userID, err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO user_profiles (user_id, created_at, updated_at)
        VALUES (?, ?, ?);
    `, userID, now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error ensuring user profile", "user_id", userID, "error", err)
		return fmt.Errorf("failed to ensure profile for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "User registered", "user_id", userID, "username", username)
	return nil
}

func (s *sqlxStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	var user User
	err := s.db.GetContext(ctx, &user, `
        SELECT user_id, username, first_name, created_at, updated_at
        FROM users WHERE username = ? COLLATE NOCASE;
    `, username)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found for username", "username", username)
		return nil, fmt.Errorf("user @%s: %w", username, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by username", "username", username, "error", err)
		return nil, fmt.Errorf("failed to get user @%s: %w", username, err)
	}

	return &user, nil
}

func (s *sqlxStore) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
        SELECT user_id, username, first_name, created_at, updated_at
        FROM users WHERE user_id = ?;
    `, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by ID", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	return &user, nil
}

func (s *sqlxStore) UpsertCharacter(ctx context.Context, name, imageURL, rarity, origin string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("character name cannot be empty")
	}

	id, err := upsertCharacterTx(ctx, s.db, name, imageURL, rarity, origin)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting character", "name", name, "error", err)
		return 0, err
	}

	s.logger.DebugContext(ctx, "Character catalog row upserted", "name", name, "char_id", id)
	return id, nil
}

// upsertCharacterTx performs the name-keyed catalog upsert on any execer
// (plain DB or open transaction) and resolves the resulting char_id.
func upsertCharacterTx(ctx context.Context, q sqlx.ExtContext, name, imageURL, rarity, origin string) (int64, error) {
	now := time.Now().UTC()

	_, err := q.ExecContext(ctx, `
        INSERT INTO characters (name, image_url, rarity, origin, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (name) DO UPDATE SET
            image_url  = excluded.image_url,
            rarity     = excluded.rarity,
            origin     = excluded.origin,
            updated_at = excluded.updated_at;
    `, name, imageURL, rarity, origin, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert character %q: %w", name, err)
	}

	var id int64
	if err := sqlx.GetContext(ctx, q, &id, `SELECT char_id FROM characters WHERE name = ?;`, name); err != nil {
		return 0, fmt.Errorf("failed to resolve char_id for %q: %w", name, err)
	}

	return id, nil
}

func (s *sqlxStore) GetCharacterByName(ctx context.Context, name string) (*Character, error) {
	var ch Character
	err := s.db.GetContext(ctx, &ch, `
        SELECT char_id, name, image_url, rarity, origin, created_at, updated_at
        FROM characters WHERE name = ?;
    `, name)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("character %q: %w", name, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting character by name", "name", name, "error", err)
		return nil, fmt.Errorf("failed to get character %q: %w", name, err)
	}

	return &ch, nil
}

func (s *sqlxStore) FindOwnedCharacter(ctx context.Context, userID int64, name string) (*Character, error) {
	var ch Character
	err := s.db.GetContext(ctx, &ch, `
        SELECT c.char_id, c.name, c.image_url, c.rarity, c.origin, c.created_at, c.updated_at
        FROM user_collection uc
        JOIN characters c ON uc.char_id = c.char_id
        WHERE uc.user_id = ? AND LOWER(c.name) = LOWER(?);
    `, userID, name)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "User does not own character", "user_id", userID, "name", name)
		return nil, fmt.Errorf("character %q owned by %d: %w", name, userID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error checking ownership", "user_id", userID, "name", name, "error", err)
		return nil, fmt.Errorf("failed to check ownership of %q for user %d: %w", name, userID, err)
	}

	return &ch, nil
}

func (s *sqlxStore) GrabCharacter(ctx context.Context, userID int64, name, imageURL, rarity, origin string) (*Character, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if name == "" {
		return nil, fmt.Errorf("character name cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollbackOnError(ctx, tx)

	charID, err := upsertCharacterTx(ctx, tx, name, imageURL, rarity, origin)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting character during grab", "name", name, "error", err)
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO user_collection (user_id, char_id, grab_time)
        VALUES (?, ?, ?);
    `, userID, charID, time.Now().UTC())
	switch {
	case isUniqueViolation(err):
		s.logger.DebugContext(ctx, "Duplicate ownership on grab", "user_id", userID, "char_id", charID)
		return nil, fmt.Errorf("user %d already owns character %q: %w", userID, name, ErrConflict)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error inserting ownership", "user_id", userID, "char_id", charID, "error", err)
		return nil, fmt.Errorf("failed to insert ownership (user %d, char %d): %w", userID, charID, err)
	}

	var ch Character
	if err := tx.GetContext(ctx, &ch, `
        SELECT char_id, name, image_url, rarity, origin, created_at, updated_at
        FROM characters WHERE char_id = ?;
    `, charID); err != nil {
		return nil, fmt.Errorf("failed to read back character %d: %w", charID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Character grabbed", "user_id", userID, "char_id", charID, "name", ch.Name)
	return &ch, nil
}

func (s *sqlxStore) GiftCharacter(ctx context.Context, fromUserID, toUserID, charID int64) error {
	if fromUserID == toUserID {
		return fmt.Errorf("cannot gift to self")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollbackOnError(ctx, tx)

	res, err := tx.ExecContext(ctx, `
        DELETE FROM user_collection WHERE user_id = ? AND char_id = ?;
    `, fromUserID, charID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error removing ownership for gift", "from", fromUserID, "char_id", charID, "error", err)
		return fmt.Errorf("failed to remove ownership (user %d, char %d): %w", fromUserID, charID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Gift source ownership not found", "from", fromUserID, "char_id", charID)
		return fmt.Errorf("character %d not owned by user %d: %w", charID, fromUserID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO user_collection (user_id, char_id, grab_time)
        VALUES (?, ?, ?);
    `, toUserID, charID, time.Now().UTC())
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("user %d already owns character %d: %w", toUserID, charID, ErrConflict)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error inserting ownership for gift", "to", toUserID, "char_id", charID, "error", err)
		return fmt.Errorf("failed to insert ownership (user %d, char %d): %w", toUserID, charID, err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
        UPDATE user_profiles SET gifts_sent = gifts_sent + 1, updated_at = ? WHERE user_id = ?;
    `, now, fromUserID); err != nil {
		return fmt.Errorf("failed to bump gifts_sent for user %d: %w", fromUserID, err)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE user_profiles SET gifts_received = gifts_received + 1, updated_at = ? WHERE user_id = ?;
    `, now, toUserID); err != nil {
		return fmt.Errorf("failed to bump gifts_received for user %d: %w", toUserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Gift transfer completed", "from", fromUserID, "to", toUserID, "char_id", charID)
	return nil
}

func (s *sqlxStore) CreateTradeOffer(ctx context.Context, offer *TradeOffer) error {
	if offer == nil {
		return fmt.Errorf("cannot create nil trade offer")
	}
	if offer.TradeID == "" {
		return fmt.Errorf("trade offer must have an ID")
	}

	if offer.Status == "" {
		offer.Status = TradePending
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO trade_offers (trade_id, from_user_id, to_user_id, from_char_name, to_char_name, status, created_at)
        VALUES (:trade_id, :from_user_id, :to_user_id, :from_char_name, :to_char_name, :status, :created_at);
    `, offer)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating trade offer", "trade_id", offer.TradeID, "error", err)
		return fmt.Errorf("failed to create trade offer %s: %w", offer.TradeID, err)
	}

	s.logger.DebugContext(ctx, "Trade offer created", "trade_id", offer.TradeID,
		"from", offer.FromUserID, "to", offer.ToUserID)
	return nil
}

func (s *sqlxStore) DeleteTradeOffer(ctx context.Context, tradeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trade_offers WHERE trade_id = ?;`, tradeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting trade offer", "trade_id", tradeID, "error", err)
		return fmt.Errorf("failed to delete trade offer %s: %w", tradeID, err)
	}
	s.logger.DebugContext(ctx, "Trade offer rolled back", "trade_id", tradeID)
	return nil
}

func (s *sqlxStore) GetTradeOffer(ctx context.Context, tradeID string) (*TradeOffer, error) {
	var offer TradeOffer
	err := s.db.GetContext(ctx, &offer, `
        SELECT trade_id, from_user_id, to_user_id, from_char_name, to_char_name, status, created_at
        FROM trade_offers WHERE trade_id = ?;
    `, tradeID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting trade offer", "trade_id", tradeID, "error", err)
		return nil, fmt.Errorf("failed to get trade offer %s: %w", tradeID, err)
	}

	return &offer, nil
}

func (s *sqlxStore) RejectTrade(ctx context.Context, tradeID string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE trade_offers SET status = ? WHERE trade_id = ? AND status = ?;
    `, TradeRejected, tradeID, TradePending)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error rejecting trade", "trade_id", tradeID, "error", err)
		return fmt.Errorf("failed to reject trade %s: %w", tradeID, err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected != 1 {
		s.logger.DebugContext(ctx, "Trade already resolved on reject", "trade_id", tradeID)
		return fmt.Errorf("trade %s already resolved: %w", tradeID, ErrConflict)
	}

	s.logger.InfoContext(ctx, "Trade rejected", "trade_id", tradeID)
	return nil
}

// AcceptTrade performs the full acceptance as one transaction: the status
// flip is the arbitration point (conditional update on PENDING), then the
// four ownership mutations and both counter bumps. A failure at any step
// rolls everything back so no partial swap is ever observable.
func (s *sqlxStore) AcceptTrade(ctx context.Context, offer *TradeOffer) error {
	if offer == nil {
		return fmt.Errorf("cannot accept nil trade offer")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollbackOnError(ctx, tx)

	res, err := tx.ExecContext(ctx, `
        UPDATE trade_offers SET status = ? WHERE trade_id = ? AND status = ?;
    `, TradeAccepted, offer.TradeID, TradePending)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error flipping trade status", "trade_id", offer.TradeID, "error", err)
		return fmt.Errorf("failed to accept trade %s: %w", offer.TradeID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected != 1 {
		s.logger.DebugContext(ctx, "Trade already resolved on accept", "trade_id", offer.TradeID)
		return fmt.Errorf("trade %s already resolved: %w", offer.TradeID, ErrConflict)
	}

	// Re-resolve both names: either character may have been renamed or
	// removed from the expected collection since the proposal.
	var fromCharID, toCharID int64
	if err := tx.GetContext(ctx, &fromCharID,
		`SELECT char_id FROM characters WHERE name = ?;`, offer.FromCharName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("trade %s: %q: %w", offer.TradeID, offer.FromCharName, ErrCharacterMissing)
		}
		return fmt.Errorf("failed to resolve %q: %w", offer.FromCharName, err)
	}
	if err := tx.GetContext(ctx, &toCharID,
		`SELECT char_id FROM characters WHERE name = ?;`, offer.ToCharName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("trade %s: %q: %w", offer.TradeID, offer.ToCharName, ErrCharacterMissing)
		}
		return fmt.Errorf("failed to resolve %q: %w", offer.ToCharName, err)
	}

	now := time.Now().UTC()

	// Move the proposer's character to the counterparty.
	if err := moveOwnership(ctx, tx, offer.FromUserID, offer.ToUserID, fromCharID, now); err != nil {
		s.logger.WarnContext(ctx, "Trade swap failed, rolling back",
			"trade_id", offer.TradeID, "char_id", fromCharID, "error", err)
		return fmt.Errorf("trade %s: give side: %w", offer.TradeID, err)
	}

	// Move the counterparty's character to the proposer.
	if err := moveOwnership(ctx, tx, offer.ToUserID, offer.FromUserID, toCharID, now); err != nil {
		s.logger.WarnContext(ctx, "Trade swap failed, rolling back",
			"trade_id", offer.TradeID, "char_id", toCharID, "error", err)
		return fmt.Errorf("trade %s: want side: %w", offer.TradeID, err)
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE user_profiles SET trades_done = trades_done + 1, updated_at = ? WHERE user_id IN (?, ?);
    `, now, offer.FromUserID, offer.ToUserID); err != nil {
		return fmt.Errorf("failed to bump trades_done for trade %s: %w", offer.TradeID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade %s: %w", offer.TradeID, err)
	}

	s.logger.InfoContext(ctx, "Trade accepted and swap committed", "trade_id", offer.TradeID,
		"from", offer.FromUserID, "to", offer.ToUserID)
	return nil
}

// moveOwnership deletes the (from, char) ownership pair and inserts the
// (to, char) pair within the caller's transaction. Ownership transfers are
// delete-then-insert (never update) so grab_time reflects the most recent
// acquisition.
func moveOwnership(ctx context.Context, tx *sqlx.Tx, fromUserID, toUserID, charID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
        DELETE FROM user_collection WHERE user_id = ? AND char_id = ?;
    `, fromUserID, charID)
	if err != nil {
		return fmt.Errorf("failed to remove ownership (user %d, char %d): %w", fromUserID, charID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected != 1 {
		return fmt.Errorf("character %d not owned by user %d: %w", charID, fromUserID, ErrCharacterMissing)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO user_collection (user_id, char_id, grab_time) VALUES (?, ?, ?);
    `, toUserID, charID, at)
	if isUniqueViolation(err) {
		return &SwapConflictError{UserID: toUserID, CharID: charID}
	}
	if err != nil {
		return fmt.Errorf("failed to insert ownership (user %d, char %d): %w", toUserID, charID, err)
	}

	return nil
}

func (s *sqlxStore) GetCollection(ctx context.Context, userID int64) ([]CollectionEntry, error) {
	var entries []CollectionEntry
	err := s.db.SelectContext(ctx, &entries, `
        SELECT c.name, c.rarity, c.origin, uc.grab_time
        FROM user_collection uc
        JOIN characters c ON uc.char_id = c.char_id
        WHERE uc.user_id = ?
        ORDER BY c.name;
    `, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting collection", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get collection for user %d: %w", userID, err)
	}

	return entries, nil
}

func (s *sqlxStore) SearchCharacters(ctx context.Context, query string, limit int) ([]Character, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	var chars []Character
	err := s.db.SelectContext(ctx, &chars, `
        SELECT char_id, name, image_url, rarity, origin, created_at, updated_at
        FROM characters
        WHERE name LIKE '%' || ? || '%' COLLATE NOCASE
        ORDER BY name
        LIMIT ?;
    `, query, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error searching characters", "query", query, "error", err)
		return nil, fmt.Errorf("failed to search characters for %q: %w", query, err)
	}

	return chars, nil
}

func (s *sqlxStore) TopCollectors(ctx context.Context, since time.Time, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
        SELECT u.first_name, COUNT(uc.char_id) AS collection_count
        FROM users u
        JOIN user_collection uc ON u.user_id = uc.user_id
        WHERE uc.grab_time >= ?
        GROUP BY u.user_id, u.first_name
        ORDER BY collection_count DESC
        LIMIT ?;
    `

	// A zero cutoff degenerates to the all-time board.
	var rows []LeaderboardRow
	err := s.db.SelectContext(ctx, &rows, query, since.UTC(), limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error aggregating leaderboard", "since", since, "error", err)
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}

	s.logger.DebugContext(ctx, "Leaderboard aggregated", "since", since, "rows", len(rows))
	return rows, nil
}

func (s *sqlxStore) GetProfileStats(ctx context.Context, userID int64) (*ProfileStats, error) {
	var stats ProfileStats
	err := s.db.GetContext(ctx, &stats, `
        SELECT up.trades_done, up.gifts_sent, up.gifts_received, up.harem_label, up.gallery_label,
               COUNT(uc.char_id) AS collection_count
        FROM user_profiles up
        LEFT JOIN user_collection uc ON up.user_id = uc.user_id
        WHERE up.user_id = ?
        GROUP BY up.user_id;
    `, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting profile stats", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get profile stats for user %d: %w", userID, err)
	}

	return &stats, nil
}

func (s *sqlxStore) SetHaremLabel(ctx context.Context, userID int64, label string) error {
	return s.setProfileLabel(ctx, userID, "harem_label", label)
}

func (s *sqlxStore) SetGalleryLabel(ctx context.Context, userID int64, label string) error {
	return s.setProfileLabel(ctx, userID, "gallery_label", label)
}

// setProfileLabel updates one of the two label columns. The column name is
// always one of the two literals above, never user input.
func (s *sqlxStore) setProfileLabel(ctx context.Context, userID int64, column, label string) error {
	query := fmt.Sprintf(`UPDATE user_profiles SET %s = ?, updated_at = ? WHERE user_id = ?;`, column)

	res, err := s.db.ExecContext(ctx, query, label, time.Now().UTC(), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error setting profile label", "user_id", userID, "column", column, "error", err)
		return fmt.Errorf("failed to set %s for user %d: %w", column, userID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected != 1 {
		return fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
	}

	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
