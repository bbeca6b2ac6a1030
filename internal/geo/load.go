package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// ErrFetch indicates the park source could not be read from either the
// local cache or the remote endpoint. It is fatal at startup.
var ErrFetch = errors.New("park source unavailable")

const fetchTimeout = 30 * time.Second

// Load reads the park set from cachePath if it exists, otherwise fetches it
// from url and writes the cache. The cache is preferred unconditionally and
// never invalidated; stale data persists until the file is removed.
func Load(ctx context.Context, url, cachePath string, logger *slog.Logger) ([]Park, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "geo_loader")

	data, err := os.ReadFile(cachePath)
	switch {
	case err == nil:
		log.Info("Loaded park data from cache", "path", cachePath)
	case os.IsNotExist(err):
		log.Info("Park cache not found, fetching remote source", "url", url)
		data, err = fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if writeErr := os.WriteFile(cachePath, data, 0o644); writeErr != nil {
			// Losing the cache only costs a refetch on the next start.
			log.Warn("Failed to write park cache", "path", cachePath, "error", writeErr)
		} else {
			log.Info("Saved park data to cache", "path", cachePath)
		}
	default:
		return nil, fmt.Errorf("%w: failed to read cache %s: %w", ErrFetch, cachePath, err)
	}

	parks, err := parseParks(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(parks) == 0 {
		return nil, fmt.Errorf("%w: source contains no usable parks", ErrFetch)
	}

	log.Info("Park data loaded", "count", len(parks))
	return parks, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	// The upstream endpoint rejects requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch park data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching park data", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read park data: %w", err)
	}
	return data, nil
}
