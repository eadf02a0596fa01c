// Package source implements the external character source client. It talks
// to a waifu.im-compatible HTTP API and normalizes its best-effort tag data
// into spawnable characters.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrUpstream indicates the character source failed or returned a payload
// the client could not use. The spawn cycle that triggered the call is lost.
var ErrUpstream = errors.New("character source failure")

// Character is a spawn candidate returned by the source. Name is always
// non-empty; Origin may be empty when the upstream tags carry no usable
// origin hint.
type Character struct {
	Name     string
	ImageURL string
	Rarity   string
	Origin   string
}

var rarities = []string{"Common", "Rare", "Epic", "Legendary"}

// searchResponse mirrors the subset of the waifu.im search payload we read.
// Tag semantics upstream are best-effort; nothing beyond the flags below is
// assumed to be stable.
type searchResponse struct {
	Images []struct {
		URL  string `json:"url"`
		Tags []struct {
			Name        string `json:"name"`
			IsCharacter bool   `json:"is_character"`
			IsMeta      bool   `json:"is_meta"`
			IsNSFW      bool   `json:"is_nsfw"`
		} `json:"tags"`
	} `json:"images"`
}

// Client fetches random characters over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a character source client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "character_source"),
	}
}

// Random requests one random character. The character name comes from the
// first is_character tag; when the payload carries none, a unique placeholder
// name is generated instead of failing the spawn. The first tag that is not
// character, meta, or explicit supplies the origin.
func (c *Client) Random(ctx context.Context) (Character, error) {
	reqURL := c.baseURL + "/search?" + url.Values{
		"is_nsfw": {"false"},
		"tags":    {"waifu"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Character{}, fmt.Errorf("%w: building request: %v", ErrUpstream, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Character source request failed", "error", err)
		return Character{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "Character source returned non-OK status", "status", resp.StatusCode)
		return Character{}, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.WarnContext(ctx, "Character source returned malformed payload", "error", err)
		return Character{}, fmt.Errorf("%w: decoding payload: %v", ErrUpstream, err)
	}

	if len(payload.Images) == 0 || payload.Images[0].URL == "" {
		c.logger.WarnContext(ctx, "Character source returned no images")
		return Character{}, fmt.Errorf("%w: empty image list", ErrUpstream)
	}

	img := payload.Images[0]

	var name, origin string
	for _, tag := range img.Tags {
		if tag.IsCharacter && name == "" {
			name = tag.Name
			continue
		}
		if !tag.IsCharacter && !tag.IsMeta && !tag.IsNSFW && origin == "" {
			origin = tag.Name
		}
	}

	if name == "" {
		// No character tag: synthesize a unique placeholder rather than
		// losing the spawn over incomplete upstream data.
		name = placeholderName()
		c.logger.DebugContext(ctx, "No character tag in payload, using placeholder", "name", name)
	}

	ch := Character{
		Name:     name,
		ImageURL: img.URL,
		Rarity:   rollRarity(),
		Origin:   origin,
	}

	c.logger.InfoContext(ctx, "Fetched character from source",
		"name", ch.Name, "rarity", ch.Rarity, "origin", ch.Origin)
	return ch, nil
}

// rollRarity picks a tier uniformly at random.
func rollRarity() string {
	return rarities[rand.IntN(len(rarities))]
}

func placeholderName() string {
	return "Waifu #" + uuid.NewString()[:8]
}
