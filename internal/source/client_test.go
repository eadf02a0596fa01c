package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/grabzone/waifubot/internal/source"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *source.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return source.NewClient(srv.URL, 5*time.Second, nil)
}

func TestRandom_ParsesCharacterAndOrigin(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("request path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("is_nsfw"); got != "false" {
			t.Errorf("is_nsfw = %q, want false", got)
		}
		w.Write([]byte(`{
			"images": [{
				"url": "https://cdn.example/img.jpg",
				"tags": [
					{"name": "waifu", "is_meta": true},
					{"name": "Asuna Yuuki", "is_character": true},
					{"name": "Sword Art Online"}
				]
			}]
		}`))
	})

	ch, err := client.Random(context.Background())
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	if ch.Name != "Asuna Yuuki" {
		t.Errorf("Name = %q, want Asuna Yuuki", ch.Name)
	}
	if ch.Origin != "Sword Art Online" {
		t.Errorf("Origin = %q, want Sword Art Online", ch.Origin)
	}
	if ch.ImageURL != "https://cdn.example/img.jpg" {
		t.Errorf("ImageURL = %q", ch.ImageURL)
	}
	if !slices.Contains([]string{"Common", "Rare", "Epic", "Legendary"}, ch.Rarity) {
		t.Errorf("Rarity = %q, want one of the four tiers", ch.Rarity)
	}
}

func TestRandom_PlaceholderWhenNoCharacterTag(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"images": [{
				"url": "https://cdn.example/img.jpg",
				"tags": [{"name": "waifu", "is_meta": true}]
			}]
		}`))
	})

	first, err := client.Random(context.Background())
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	if !strings.HasPrefix(first.Name, "Waifu #") {
		t.Errorf("Name = %q, want a Waifu # placeholder", first.Name)
	}

	// Placeholders are unique so repeated tagless payloads never collide in
	// the catalog.
	second, err := client.Random(context.Background())
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	if first.Name == second.Name {
		t.Errorf("two placeholder names collided: %q", first.Name)
	}
}

func TestRandom_UpstreamFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"images": [`))
			},
		},
		{
			name: "empty image list",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"images": []}`))
			},
		},
		{
			name: "image without url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"images": [{"url": "", "tags": []}]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, tt.handler)
			_, err := client.Random(context.Background())
			if !errors.Is(err, source.ErrUpstream) {
				t.Errorf("Random() error = %v, want ErrUpstream", err)
			}
		})
	}
}

func TestRandom_ContextCancellation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Random(ctx); !errors.Is(err, source.ErrUpstream) {
		t.Errorf("Random() error = %v, want ErrUpstream", err)
	}
}
