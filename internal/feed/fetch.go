package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	appLog "nextrace/internal/log"
	"nextrace/internal/metrics"
)

// ErrUnexpectedStatus is returned for a non-2xx response when no cached body
// is available.
var ErrUnexpectedStatus = errors.New("feed: unexpected status")

const (
	defaultTimeout  = 15 * time.Second
	maxBodyBytes    = 16 << 20
	breakerFailures = 3
	breakerCooldown = time.Minute
)

// FetchResult contains the outcome of fetching the feed.
type FetchResult struct {
	URL       string
	Body      []byte // payload, either freshly fetched or from cache
	FromCache bool   // true if the cached body was reused (304 or fallback)
	FetchedAt time.Time
}

// cacheEntry holds HTTP cache metadata for the feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves the schedule feed with HTTP caching (ETag /
// Last-Modified) backed by a disk cache, behind a circuit breaker.
type Fetcher struct {
	url      string
	client   *http.Client
	cacheDir string
	breaker  *gobreaker.CircuitBreaker[FetchResult]
	now      func() time.Time
}

// Options configures a Fetcher.
type Options struct {
	URL string
	// CacheDir is the base directory for the per-URL cache. Empty uses
	// "./var/feed-cache".
	CacheDir string
	// Timeout bounds one HTTP exchange. Zero uses 15s.
	Timeout time.Duration
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// NewFetcher creates a feed Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.CacheDir == "" {
		// Development runs without root permissions.
		opts.CacheDir = "./var/feed-cache"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	f := &Fetcher{
		url:      opts.URL,
		client:   client,
		cacheDir: opts.CacheDir,
		now:      time.Now,
	}
	f.breaker = gobreaker.NewCircuitBreaker[FetchResult](gobreaker.Settings{
		Name:    "feed",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			appLog.Warn("feed breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return f
}

// Fetch retrieves the feed, honoring ETag and Last-Modified. When the
// network fails, the server answers non-2xx, or the breaker is open, the
// last cached body is returned with FromCache set. Context cancellation is
// returned as-is.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	if f.url == "" {
		return FetchResult{}, errors.New("feed: URL is empty")
	}

	cachePath := f.cachePathForURL(f.url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	res, err := f.breaker.Execute(func() (FetchResult, error) {
		return f.fetchNetwork(ctx, cachePath, meta, cachedBody)
	})
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return FetchResult{}, ctxErr
	}
	if len(cachedBody) > 0 {
		appLog.Error("feed fetch failed, using cached body", err, "url", redactURL(f.url))
		metrics.FeedFetchTotal.WithLabelValues(metrics.FetchCacheFallback).Inc()
		return FetchResult{
			URL:       f.url,
			Body:      cachedBody,
			FromCache: true,
			FetchedAt: meta.UpdatedAt,
		}, nil
	}
	metrics.FeedFetchTotal.WithLabelValues(metrics.FetchError).Inc()
	return FetchResult{}, err
}

func (f *Fetcher) fetchNetwork(ctx context.Context, cachePath string, meta cacheEntry, cachedBody []byte) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	// Conditional headers only make sense with a body to fall back on.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("feed fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("feed: 304 Not Modified but no cached body available")
		}
		appLog.Info("feed not modified; using cache", "url", redactURL(f.url))
		metrics.FeedFetchTotal.WithLabelValues(metrics.FetchNotModified).Inc()
		return FetchResult{
			URL:       f.url,
			Body:      cachedBody,
			FromCache: true,
			FetchedAt: f.now(),
		}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return FetchResult{}, err
		}

		newMeta := cacheEntry{
			URL:          f.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("feed cache save failed", err, "url", redactURL(f.url))
		}

		appLog.Info("feed fetch success", "url", redactURL(f.url), "status", resp.StatusCode, "bytes", len(body))
		metrics.FeedFetchTotal.WithLabelValues(metrics.FetchNetwork).Inc()
		return FetchResult{
			URL:       f.url,
			Body:      body,
			FetchedAt: f.now(),
		}, nil

	default:
		return FetchResult{}, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := renameio.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = f.now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides the path and query of a URL for logging:
//
//	https://example.com/path/feed.json?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "feed://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
