// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotFound means the volume id does not exist upstream. Callers render a
// fallback title and carry on.
var ErrNotFound = errors.New("volume not found")

// ErrTransient wraps upstream availability problems (5xx, timeouts).
// Lifecycle state is never mutated on a transient failure.
var ErrTransient = errors.New("volume lookup unavailable")

// IsNotFound reports whether err means the volume does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Volume is the subset of upstream volume metadata the club cares about.
type Volume struct {
	ID        string
	Title     string
	Authors   []string
	Thumbnail string
	Mature    bool
}

// DisplayTitle is the volume's title with a generic fallback when metadata
// was unavailable.
func (v Volume) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return FallbackTitle(v.ID)
}

// FallbackTitle renders a volume id when no metadata could be fetched.
func FallbackTitle(volumeID string) string {
	return fmt.Sprintf("Book (%s)", volumeID)
}

const defaultCacheTTL = 24 * time.Hour

type cacheEntry struct {
	volume  Volume
	expires time.Time
}

// Client fetches volume metadata with a TTL cache in front. The upstream
// speaks the Google Books volumes API shape.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	hits   atomic.Int64
	misses atomic.Int64
}

// NewClient creates a metadata client. baseURL is the volumes endpoint root,
// e.g. "https://www.googleapis.com/books/v1"; apiKey may be empty.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		ttl:     defaultCacheTTL,
		cache:   make(map[string]cacheEntry),
	}
}

// Volume returns metadata for one volume id, from cache when fresh.
func (c *Client) Volume(ctx context.Context, volumeID string) (Volume, error) {
	c.mu.Lock()
	entry, ok := c.cache[volumeID]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expires) {
		c.hits.Add(1)
		return entry.volume, nil
	}
	c.misses.Add(1)

	vol, err := c.fetch(ctx, volumeID)
	if err != nil {
		return Volume{}, err
	}

	c.mu.Lock()
	c.cache[volumeID] = cacheEntry{volume: vol, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return vol, nil
}

func (c *Client) fetch(ctx context.Context, volumeID string) (Volume, error) {
	u := c.baseURL + "/volumes/" + url.PathEscape(volumeID)
	if c.apiKey != "" {
		u += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Volume{}, fmt.Errorf("build volume request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Volume{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Volume{}, fmt.Errorf("%w: %s", ErrNotFound, volumeID)
	case resp.StatusCode >= 500:
		return Volume{}, fmt.Errorf("%w: upstream status %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Volume{}, fmt.Errorf("volume lookup for %s: unexpected status %d", volumeID, resp.StatusCode)
	}

	var payload struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title          string   `json:"title"`
			Authors        []string `json:"authors"`
			MaturityRating string   `json:"maturityRating"`
			ImageLinks     struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Volume{}, fmt.Errorf("decode volume %s: %w", volumeID, err)
	}

	return Volume{
		ID:        volumeID,
		Title:     payload.VolumeInfo.Title,
		Authors:   payload.VolumeInfo.Authors,
		Thumbnail: payload.VolumeInfo.ImageLinks.Thumbnail,
		Mature:    payload.VolumeInfo.MaturityRating == "MATURE",
	}, nil
}

// LogStatsLoop periodically logs cache hit/miss counters until ctx is done.
func (c *Client) LogStatsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			size := len(c.cache)
			c.mu.Unlock()
			c.logger.Info("Metadata cache stats",
				"hits", c.hits.Load(),
				"misses", c.misses.Load(),
				"entries", size)
		}
	}
}
