package feed

import (
	"context"
	"fmt"
	"os"
)

// File serves the feed from a local JSON file. It satisfies the same
// Fetch contract as Fetcher and is used for offline runs.
type File struct {
	Path string
}

// Fetch reads the file. The result is never marked FromCache.
func (f File) Fetch(ctx context.Context) (FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return FetchResult{}, err
	}
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return FetchResult{}, fmt.Errorf("feed: read %s: %w", f.Path, err)
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{
		URL:       "file://" + f.Path,
		Body:      body,
		FetchedAt: info.ModTime(),
	}, nil
}
