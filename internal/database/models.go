package database

import (
	"database/sql"
	"time"
)

// Rarity tiers attached to a character at spawn time.
const (
	RarityCommon    = "Common"
	RarityRare      = "Rare"
	RarityEpic      = "Epic"
	RarityLegendary = "Legendary"
)

// Trade offer lifecycle states. A PENDING offer transitions exactly once
// to ACCEPTED or REJECTED and is immutable afterwards.
const (
	TradePending  = "PENDING"
	TradeAccepted = "ACCEPTED"
	TradeRejected = "REJECTED"
)

// User represents a Telegram user known to the bot. Users are registered
// idempotently on first observed activity and never deleted; username and
// first_name always reflect the latest seen values.
type User struct {
	UserID    int64          `db:"user_id"`
	Username  sql.NullString `db:"username"`
	FirstName string         `db:"first_name"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Profile stores per-user game counters and display labels. A profile row
// exists for every registered user; counters only ever increase.
type Profile struct {
	UserID        int64     `db:"user_id"`
	TradesDone    int       `db:"trades_done"`
	GiftsSent     int       `db:"gifts_sent"`
	GiftsReceived int       `db:"gifts_received"`
	HaremLabel    string    `db:"harem_label"`
	GalleryLabel  string    `db:"gallery_label"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Character is a catalog entry. Name is the natural key: the external
// source does not guarantee stable identifiers, so repeat spawns of the
// same name update the existing row instead of duplicating it.
type Character struct {
	CharID    int64     `db:"char_id"`
	Name      string    `db:"name"`
	ImageURL  string    `db:"image_url"`
	Rarity    string    `db:"rarity"`
	Origin    string    `db:"origin"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TradeOffer is a proposed bilateral exchange, pending the counterparty's
// response. Character sides are recorded by catalog name and re-resolved
// at acceptance time.
type TradeOffer struct {
	TradeID      string    `db:"trade_id"`
	FromUserID   int64     `db:"from_user_id"`
	ToUserID     int64     `db:"to_user_id"`
	FromCharName string    `db:"from_char_name"`
	ToCharName   string    `db:"to_char_name"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// CollectionEntry is a single row of a user's collection listing.
type CollectionEntry struct {
	Name     string    `db:"name"`
	Rarity   string    `db:"rarity"`
	Origin   string    `db:"origin"`
	GrabTime time.Time `db:"grab_time"`
}

// LeaderboardRow is one entry of the top-collectors aggregation.
type LeaderboardRow struct {
	FirstName string `db:"first_name"`
	Count     int    `db:"collection_count"`
}

// ProfileStats is the aggregate returned for the /status command.
type ProfileStats struct {
	TradesDone      int    `db:"trades_done"`
	GiftsSent       int    `db:"gifts_sent"`
	GiftsReceived   int    `db:"gifts_received"`
	HaremLabel      string `db:"harem_label"`
	GalleryLabel    string `db:"gallery_label"`
	CollectionCount int    `db:"collection_count"`
}
