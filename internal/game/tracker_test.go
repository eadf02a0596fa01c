package game_test

import (
	"sync"
	"testing"

	"github.com/grabzone/waifubot/internal/game"
)

func TestTracker_BumpThreshold(t *testing.T) {
	t.Parallel()

	tr := game.NewTracker(3)

	if tr.Bump(1) {
		t.Error("Bump() = true on first message, want false")
	}
	if tr.Bump(1) {
		t.Error("Bump() = true on second message, want false")
	}
	if !tr.Bump(1) {
		t.Error("Bump() = false on third message, want true")
	}
	if got := tr.Count(1); got != 0 {
		t.Errorf("Count() = %d after threshold hit, want 0", got)
	}

	// The next cycle starts from zero again.
	if tr.Bump(1) {
		t.Error("Bump() = true right after a threshold hit, want false")
	}
}

func TestTracker_ChatsCountIndependently(t *testing.T) {
	t.Parallel()

	tr := game.NewTracker(2)

	if tr.Bump(1) {
		t.Error("chat 1 hit threshold after one message")
	}
	if tr.Bump(2) {
		t.Error("chat 2 hit threshold after one message")
	}
	if !tr.Bump(1) {
		t.Error("chat 1 did not hit threshold after two messages")
	}
	if got := tr.Count(2); got != 1 {
		t.Errorf("chat 2 Count() = %d, want 1", got)
	}
}

func TestTracker_SetThreshold(t *testing.T) {
	t.Parallel()

	tr := game.NewTracker(100)
	tr.SetThreshold(2)

	if got := tr.Threshold(); got != 2 {
		t.Fatalf("Threshold() = %d, want 2", got)
	}

	tr.Bump(1)
	if !tr.Bump(1) {
		t.Error("Bump() = false after lowering threshold to 2")
	}

	// Invalid values are ignored.
	tr.SetThreshold(0)
	if got := tr.Threshold(); got != 2 {
		t.Errorf("Threshold() = %d after SetThreshold(0), want 2", got)
	}
}

func TestTracker_SpawnReservation(t *testing.T) {
	t.Parallel()

	tr := game.NewTracker(10)

	if !tr.BeginSpawn(1) {
		t.Fatal("BeginSpawn() = false on idle chat, want true")
	}
	if tr.BeginSpawn(1) {
		t.Error("BeginSpawn() = true while a reservation is pending, want false")
	}

	// A pending reservation is not claimable.
	err := tr.WithSession(1, func(s *game.Session) error {
		if s != nil {
			t.Error("WithSession passed a pending session, want nil")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}

	tr.CompleteSpawn(1, game.Session{Name: "Asuna", MessageID: 7})

	got, ok := tr.ActiveSession(1)
	if !ok {
		t.Fatal("ActiveSession() = false after CompleteSpawn, want true")
	}
	if got.Name != "Asuna" || got.MessageID != 7 {
		t.Errorf("ActiveSession() = %+v, want Name=Asuna MessageID=7", got)
	}

	// An unclaimed session keeps blocking new spawns.
	if tr.BeginSpawn(1) {
		t.Error("BeginSpawn() = true with an unclaimed session, want false")
	}
}

func TestTracker_AbortSpawnReleasesReservation(t *testing.T) {
	t.Parallel()

	tr := game.NewTracker(10)

	if !tr.BeginSpawn(1) {
		t.Fatal("BeginSpawn() = false on idle chat, want true")
	}
	tr.AbortSpawn(1)

	if !tr.BeginSpawn(1) {
		t.Error("BeginSpawn() = false after AbortSpawn, want true")
	}
}

func TestTracker_ClaimedSessionAllowsNextSpawn(t *testing.T) {
	t.Parallel()

	tr := game.NewTracker(10)

	tr.BeginSpawn(1)
	tr.CompleteSpawn(1, game.Session{Name: "Rem"})

	err := tr.WithSession(1, func(s *game.Session) error {
		s.Claimed = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}

	if _, ok := tr.ActiveSession(1); ok {
		t.Error("ActiveSession() = true after claim, want false")
	}
	if !tr.BeginSpawn(1) {
		t.Error("BeginSpawn() = false after the session was claimed, want true")
	}
}

func TestTracker_ConcurrentBumps(t *testing.T) {
	t.Parallel()

	const (
		threshold = 10
		total     = 1000
	)

	tr := game.NewTracker(threshold)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	for range total {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Bump(42) {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if want := total / threshold; hits != want {
		t.Errorf("threshold hits = %d for %d bumps, want %d", hits, total, want)
	}
	if got := tr.Count(42); got != 0 {
		t.Errorf("Count() = %d after exact multiple of threshold, want 0", got)
	}
}
