package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// HTTPCache implements driven.HTTPCache (C1) with a single-table store.
// REPLACE INTO gives atomic whole-row replacement, matching the "never
// partially populated" guarantee from spec.md §3.
type HTTPCache struct {
	db *DB
}

var _ driven.HTTPCache = (*HTTPCache)(nil)

// NewHTTPCache wraps db for conditional-GET caching.
func NewHTTPCache(db *DB) *HTTPCache {
	return &HTTPCache{db: db}
}

func (h *HTTPCache) Get(ctx context.Context, url string) (*model.CacheEntry, error) {
	row := h.db.Reader.QueryRowContext(ctx,
		`SELECT url, etag, last_modified, body, fetched_at FROM http_cache WHERE url = ?`, url)

	var entry model.CacheEntry
	var fetchedAt time.Time
	if err := row.Scan(&entry.URL, &entry.ETag, &entry.LastModified, &entry.Body, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading http_cache for %s: %w", url, err)
	}
	entry.FetchedAt = fetchedAt
	return &entry, nil
}

func (h *HTTPCache) Set(ctx context.Context, entry model.CacheEntry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}
	_, err := h.db.Writer.ExecContext(ctx,
		`REPLACE INTO http_cache (url, etag, last_modified, body, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		entry.URL, entry.ETag, entry.LastModified, entry.Body, entry.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("writing http_cache for %s: %w", entry.URL, err)
	}
	return nil
}
