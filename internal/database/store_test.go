package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grabzone/waifubot/internal/database"

	_ "modernc.org/sqlite"
)

// newTestStore opens a fresh migrated SQLite database in a temp directory.
func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func registerUser(t *testing.T, store database.Store, id int64, username, firstName string) {
	t.Helper()
	if err := store.UpsertUser(context.Background(), id, username, firstName); err != nil {
		t.Fatalf("UpsertUser(%d) error = %v", id, err)
	}
}

func grab(t *testing.T, store database.Store, userID int64, name string) *database.Character {
	t.Helper()
	ch, err := store.GrabCharacter(context.Background(), userID, name, "https://img.example/"+name, database.RarityCommon, "Test Origin")
	if err != nil {
		t.Fatalf("GrabCharacter(%d, %q) error = %v", userID, name, err)
	}
	return ch
}

func TestUpsertUser_Idempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 1, "alice_new", "Alice B")

	user, err := store.GetUserByUsername(ctx, "alice_new")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if user.UserID != 1 || user.FirstName != "Alice B" {
		t.Errorf("user = %+v, want ID 1 with updated first name", user)
	}

	// The old username no longer resolves.
	if _, err := store.GetUserByUsername(ctx, "alice"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetUserByUsername(old) error = %v, want ErrNotFound", err)
	}

	// Registration created a profile row.
	stats, err := store.GetProfileStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfileStats() error = %v", err)
	}
	if stats.CollectionCount != 0 || stats.TradesDone != 0 {
		t.Errorf("fresh profile = %+v, want zero counters", stats)
	}
}

func TestUpsertUser_NoUsername(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 2, "", "NoHandle")

	user, err := store.GetUserByID(ctx, 2)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Username.Valid {
		t.Errorf("username = %q, want NULL", user.Username.String)
	}
}

func TestGrabCharacter_DuplicateOwnership(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	grab(t, store, 1, "Asuna")

	_, err := store.GrabCharacter(ctx, 1, "Asuna", "https://img.example/Asuna", database.RarityCommon, "SAO")
	if !errors.Is(err, database.ErrConflict) {
		t.Errorf("second grab error = %v, want ErrConflict", err)
	}

	entries, err := store.GetCollection(ctx, 1)
	if err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("collection size = %d after duplicate grab, want 1", len(entries))
	}
}

func TestFindOwnedCharacter_CaseInsensitive(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	grab(t, store, 1, "Rem")

	ch, err := store.FindOwnedCharacter(ctx, 1, "rem")
	if err != nil {
		t.Fatalf("FindOwnedCharacter(lowercase) error = %v", err)
	}
	if ch.Name != "Rem" {
		t.Errorf("resolved name = %q, want canonical %q", ch.Name, "Rem")
	}

	if _, err := store.FindOwnedCharacter(ctx, 1, "Emilia"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("FindOwnedCharacter(unowned) error = %v, want ErrNotFound", err)
	}
}

func TestGiftCharacter(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	ch := grab(t, store, 1, "Asuna")

	if err := store.GiftCharacter(ctx, 1, 2, ch.CharID); err != nil {
		t.Fatalf("GiftCharacter() error = %v", err)
	}

	// Ownership moved, nothing duplicated.
	if _, err := store.FindOwnedCharacter(ctx, 1, "Asuna"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("sender still owns the character: %v", err)
	}
	if _, err := store.FindOwnedCharacter(ctx, 2, "Asuna"); err != nil {
		t.Errorf("recipient does not own the character: %v", err)
	}

	senderStats, err := store.GetProfileStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfileStats(sender) error = %v", err)
	}
	recipientStats, err := store.GetProfileStats(ctx, 2)
	if err != nil {
		t.Fatalf("GetProfileStats(recipient) error = %v", err)
	}
	if senderStats.GiftsSent != 1 || senderStats.CollectionCount != 0 {
		t.Errorf("sender stats = %+v, want gifts_sent=1 collection=0", senderStats)
	}
	if recipientStats.GiftsReceived != 1 || recipientStats.CollectionCount != 1 {
		t.Errorf("recipient stats = %+v, want gifts_received=1 collection=1", recipientStats)
	}
}

func TestGiftCharacter_Failures(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	ch := grab(t, store, 1, "Asuna")
	grab(t, store, 2, "Asuna")

	// Recipient already owns it: nothing changes for either side.
	err := store.GiftCharacter(ctx, 1, 2, ch.CharID)
	if !errors.Is(err, database.ErrConflict) {
		t.Fatalf("gift to existing owner error = %v, want ErrConflict", err)
	}
	if _, err := store.FindOwnedCharacter(ctx, 1, "Asuna"); err != nil {
		t.Errorf("sender lost the character on a failed gift: %v", err)
	}

	// Sender does not own the character.
	err = store.GiftCharacter(ctx, 2, 1, ch.CharID+999)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("gift of unowned character error = %v, want ErrNotFound", err)
	}

	stats, err := store.GetProfileStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfileStats() error = %v", err)
	}
	if stats.GiftsSent != 0 {
		t.Errorf("gifts_sent = %d after failed gifts, want 0", stats.GiftsSent)
	}
}

func newOffer(fromID, toID int64, give, want string) *database.TradeOffer {
	return &database.TradeOffer{
		TradeID:      uuid.NewString(),
		FromUserID:   fromID,
		ToUserID:     toID,
		FromCharName: give,
		ToCharName:   want,
		Status:       database.TradePending,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestAcceptTrade_SwapsAndCounts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	grab(t, store, 1, "Asuna")
	grab(t, store, 2, "Emilia")

	offer := newOffer(1, 2, "Asuna", "Emilia")
	if err := store.CreateTradeOffer(ctx, offer); err != nil {
		t.Fatalf("CreateTradeOffer() error = %v", err)
	}
	if err := store.AcceptTrade(ctx, offer); err != nil {
		t.Fatalf("AcceptTrade() error = %v", err)
	}

	if _, err := store.FindOwnedCharacter(ctx, 1, "Emilia"); err != nil {
		t.Errorf("proposer did not receive Emilia: %v", err)
	}
	if _, err := store.FindOwnedCharacter(ctx, 2, "Asuna"); err != nil {
		t.Errorf("counterparty did not receive Asuna: %v", err)
	}
	if _, err := store.FindOwnedCharacter(ctx, 1, "Asuna"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("proposer still owns Asuna: %v", err)
	}

	for _, id := range []int64{1, 2} {
		stats, err := store.GetProfileStats(ctx, id)
		if err != nil {
			t.Fatalf("GetProfileStats(%d) error = %v", id, err)
		}
		if stats.TradesDone != 1 {
			t.Errorf("trades_done for user %d = %d, want 1", id, stats.TradesDone)
		}
		if stats.CollectionCount != 1 {
			t.Errorf("collection size for user %d = %d, want 1", id, stats.CollectionCount)
		}
	}

	got, err := store.GetTradeOffer(ctx, offer.TradeID)
	if err != nil {
		t.Fatalf("GetTradeOffer() error = %v", err)
	}
	if got.Status != database.TradeAccepted {
		t.Errorf("offer status = %q, want %q", got.Status, database.TradeAccepted)
	}
}

func TestAcceptTrade_AllOrNothing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	registerUser(t, store, 3, "carol", "Carol")
	grab(t, store, 1, "Asuna")
	ch := grab(t, store, 2, "Emilia")

	offer := newOffer(1, 2, "Asuna", "Emilia")
	if err := store.CreateTradeOffer(ctx, offer); err != nil {
		t.Fatalf("CreateTradeOffer() error = %v", err)
	}

	// Between proposal and acceptance, Bob gifts Emilia away.
	if err := store.GiftCharacter(ctx, 2, 3, ch.CharID); err != nil {
		t.Fatalf("GiftCharacter() error = %v", err)
	}

	err := store.AcceptTrade(ctx, offer)
	if !errors.Is(err, database.ErrCharacterMissing) {
		t.Fatalf("AcceptTrade() error = %v, want ErrCharacterMissing", err)
	}

	// Nothing applied: Alice keeps Asuna, the offer stays PENDING, no counters.
	if _, err := store.FindOwnedCharacter(ctx, 1, "Asuna"); err != nil {
		t.Errorf("proposer lost Asuna in a failed trade: %v", err)
	}
	got, err := store.GetTradeOffer(ctx, offer.TradeID)
	if err != nil {
		t.Fatalf("GetTradeOffer() error = %v", err)
	}
	if got.Status != database.TradePending {
		t.Errorf("offer status = %q after failed accept, want PENDING", got.Status)
	}
	stats, err := store.GetProfileStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfileStats() error = %v", err)
	}
	if stats.TradesDone != 0 {
		t.Errorf("trades_done = %d after failed accept, want 0", stats.TradesDone)
	}
}

func TestAcceptTrade_RecipientAlreadyOwns(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	grab(t, store, 1, "Asuna")
	grab(t, store, 2, "Asuna")
	grab(t, store, 2, "Emilia")

	offer := newOffer(1, 2, "Asuna", "Emilia")
	if err := store.CreateTradeOffer(ctx, offer); err != nil {
		t.Fatalf("CreateTradeOffer() error = %v", err)
	}

	// Bob already holds a copy of Asuna, so the swap cannot hand him
	// another one. This is not a lost race, so it is not ErrConflict.
	err := store.AcceptTrade(ctx, offer)
	if !errors.Is(err, database.ErrSwapConflict) {
		t.Fatalf("AcceptTrade() error = %v, want ErrSwapConflict", err)
	}
	if errors.Is(err, database.ErrConflict) {
		t.Error("swap conflict also matches ErrConflict, the two must stay distinct")
	}
	var swap *database.SwapConflictError
	if !errors.As(err, &swap) {
		t.Fatalf("AcceptTrade() error = %T, want *SwapConflictError", err)
	}
	if swap.UserID != 2 {
		t.Errorf("blocking user = %d, want 2", swap.UserID)
	}

	// Nothing applied: everyone keeps what they had and the offer is open.
	if _, err := store.FindOwnedCharacter(ctx, 1, "Asuna"); err != nil {
		t.Errorf("proposer lost Asuna in a blocked trade: %v", err)
	}
	if _, err := store.FindOwnedCharacter(ctx, 2, "Emilia"); err != nil {
		t.Errorf("counterparty lost Emilia in a blocked trade: %v", err)
	}
	got, err := store.GetTradeOffer(ctx, offer.TradeID)
	if err != nil {
		t.Fatalf("GetTradeOffer() error = %v", err)
	}
	if got.Status != database.TradePending {
		t.Errorf("offer status = %q after blocked accept, want PENDING", got.Status)
	}
}

func TestTradeResolution_SingleShot(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	grab(t, store, 1, "Asuna")
	grab(t, store, 2, "Emilia")

	offer := newOffer(1, 2, "Asuna", "Emilia")
	if err := store.CreateTradeOffer(ctx, offer); err != nil {
		t.Fatalf("CreateTradeOffer() error = %v", err)
	}

	if err := store.RejectTrade(ctx, offer.TradeID); err != nil {
		t.Fatalf("RejectTrade() error = %v", err)
	}

	// A resolved offer cannot be resolved again, in either direction.
	if err := store.RejectTrade(ctx, offer.TradeID); !errors.Is(err, database.ErrConflict) {
		t.Errorf("second reject error = %v, want ErrConflict", err)
	}
	if err := store.AcceptTrade(ctx, offer); !errors.Is(err, database.ErrConflict) {
		t.Errorf("accept after reject error = %v, want ErrConflict", err)
	}

	// The rejected swap never happened.
	if _, err := store.FindOwnedCharacter(ctx, 1, "Asuna"); err != nil {
		t.Errorf("proposer lost Asuna on a rejected trade: %v", err)
	}
}

func TestTradeResolution_ConcurrentResponders(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	grab(t, store, 1, "Asuna")
	grab(t, store, 2, "Emilia")

	offer := newOffer(1, 2, "Asuna", "Emilia")
	if err := store.CreateTradeOffer(ctx, offer); err != nil {
		t.Fatalf("CreateTradeOffer() error = %v", err)
	}

	// Accepts and rejects race for the same PENDING offer; the conditional
	// status flip lets exactly one through.
	const responders = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		resolved  int
		conflicts int
	)
	for i := range responders {
		accept := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if accept {
				err = store.AcceptTrade(ctx, offer)
			} else {
				err = store.RejectTrade(ctx, offer.TradeID)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				resolved++
			case errors.Is(err, database.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected resolution error: %v", err)
			}
		}()
	}
	wg.Wait()

	if resolved != 1 {
		t.Fatalf("winning resolutions = %d, want exactly 1", resolved)
	}
	if conflicts != responders-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, responders-1)
	}

	// Ownership agrees with whichever resolution won.
	got, err := store.GetTradeOffer(ctx, offer.TradeID)
	if err != nil {
		t.Fatalf("GetTradeOffer() error = %v", err)
	}
	asunaOwner, emiliaOwner := int64(1), int64(2)
	if got.Status == database.TradeAccepted {
		asunaOwner, emiliaOwner = 2, 1
	} else if got.Status != database.TradeRejected {
		t.Fatalf("offer status = %q, want a terminal state", got.Status)
	}
	if _, err := store.FindOwnedCharacter(ctx, asunaOwner, "Asuna"); err != nil {
		t.Errorf("Asuna not owned by user %d after %s: %v", asunaOwner, got.Status, err)
	}
	if _, err := store.FindOwnedCharacter(ctx, emiliaOwner, "Emilia"); err != nil {
		t.Errorf("Emilia not owned by user %d after %s: %v", emiliaOwner, got.Status, err)
	}
}

func TestDeleteTradeOffer(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")

	offer := newOffer(1, 2, "Asuna", "Emilia")
	if err := store.CreateTradeOffer(ctx, offer); err != nil {
		t.Fatalf("CreateTradeOffer() error = %v", err)
	}
	if err := store.DeleteTradeOffer(ctx, offer.TradeID); err != nil {
		t.Fatalf("DeleteTradeOffer() error = %v", err)
	}
	if _, err := store.GetTradeOffer(ctx, offer.TradeID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetTradeOffer() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSearchCharacters(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	grab(t, store, 1, "Asuna Yuuki")
	grab(t, store, 1, "Emilia")
	grab(t, store, 1, "Rem")

	results, err := store.SearchCharacters(ctx, "asu", 10)
	if err != nil {
		t.Fatalf("SearchCharacters() error = %v", err)
	}
	if len(results) != 1 || results[0].Name != "Asuna Yuuki" {
		t.Errorf("SearchCharacters(asu) = %+v, want single Asuna Yuuki", results)
	}

	none, err := store.SearchCharacters(ctx, "zzz", 10)
	if err != nil {
		t.Fatalf("SearchCharacters() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("SearchCharacters(zzz) = %d results, want 0", len(none))
	}
}

func TestTopCollectors_Windows(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")
	registerUser(t, store, 2, "bob", "Bob")
	grab(t, store, 1, "Asuna")
	grab(t, store, 1, "Emilia")
	grab(t, store, 2, "Rem")

	rows, err := store.TopCollectors(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("TopCollectors(all-time) error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("all-time rows = %d, want 2", len(rows))
	}
	if rows[0].FirstName != "Alice" || rows[0].Count != 2 {
		t.Errorf("top row = %+v, want Alice with 2", rows[0])
	}
	if rows[1].FirstName != "Bob" || rows[1].Count != 1 {
		t.Errorf("second row = %+v, want Bob with 1", rows[1])
	}

	// A recent cutoff still includes everything just grabbed.
	rows, err = store.TopCollectors(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("TopCollectors(recent) error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("recent-window rows = %d, want 2", len(rows))
	}

	// A future cutoff excludes everything; an empty board is a valid result.
	rows, err = store.TopCollectors(ctx, time.Now().UTC().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("TopCollectors(future) error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("future-window rows = %d, want 0", len(rows))
	}
}

func TestProfileLabels(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	registerUser(t, store, 1, "alice", "Alice")

	if err := store.SetHaremLabel(ctx, 1, "Dream Team"); err != nil {
		t.Fatalf("SetHaremLabel() error = %v", err)
	}
	if err := store.SetGalleryLabel(ctx, 1, "Showcase"); err != nil {
		t.Fatalf("SetGalleryLabel() error = %v", err)
	}

	stats, err := store.GetProfileStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfileStats() error = %v", err)
	}
	if stats.HaremLabel != "Dream Team" || stats.GalleryLabel != "Showcase" {
		t.Errorf("labels = %q/%q, want Dream Team/Showcase", stats.HaremLabel, stats.GalleryLabel)
	}

	if err := store.SetHaremLabel(ctx, 99, "x"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("SetHaremLabel(unknown user) error = %v, want ErrNotFound", err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
}
