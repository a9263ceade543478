package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "taskrrule/internal/log"
)

// Feed is one subscribed task calendar.
type Feed struct {
	ID   string
	URL  string
	Name string
}

// FeedBody is the payload of one feed, fresh or replayed from disk.
type FeedBody struct {
	Feed      Feed
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads feeds with conditional requests and keeps the last good
// body of each feed on disk so an unreachable server does not empty the
// task list.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	now      func() time.Time
}

// NewFetcher returns a Fetcher caching under cacheDir. A nil client gets a
// 15 second timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache/feeds"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir, now: time.Now}
}

// FetchAll fetches every feed. Failed feeds are logged and reported in the
// error slice; they do not stop the others.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]FeedBody, []error) {
	out := make([]FeedBody, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		b, err := f.Fetch(ctx, feed)
		if err != nil {
			appLog.Error("feed fetch failed", err, "id", feed.ID, "url", redactURL(feed.URL))
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		out = append(out, b)
	}
	return out, errs
}

// Fetch downloads one feed honoring ETag and Last-Modified. A 304, a
// network error or a non-OK status falls back to the cached body when one
// exists.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (FeedBody, error) {
	if feed.URL == "" {
		return FeedBody{}, errors.New("feed URL is empty")
	}

	dir := f.cachePath(feed.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FeedBody{}, err
	}
	meta, _ := readMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return FeedBody{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("feed fetch start", "id", feed.ID, "url", redactURL(feed.URL))

	fallback := func(reason error) (FeedBody, error) {
		if len(cached) == 0 {
			return FeedBody{}, reason
		}
		appLog.Warn("feed fetch fell back to cache", "id", feed.ID, "url", redactURL(feed.URL), "err", reason)
		return FeedBody{Feed: feed, Body: cached, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		meta = cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    f.now().UTC(),
		}
		if err := writeCache(dir, meta, body); err != nil {
			appLog.Error("feed cache save failed", err, "id", feed.ID)
		}
		appLog.Info("feed fetched", "id", feed.ID, "url", redactURL(feed.URL), "bytes", len(body))
		return FeedBody{Feed: feed, Body: body}, nil
	case http.StatusNotModified:
		if len(cached) == 0 {
			return FeedBody{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("feed not modified", "id", feed.ID)
		return FeedBody{Feed: feed, Body: cached, FromCache: true}, nil
	default:
		return fallback(errors.New(resp.Status))
	}
}

// cachePath keys a feed's cache directory by a hash of its URL.
func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// writeCache stores the body before the metadata so the metadata never
// names a body that is not on disk.
func writeCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only the scheme and host of a feed URL. Private calendar
// URLs carry their secret in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "feed://(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
