package model

import "time"

// CacheEntry is a cached conditional-GET response keyed by the full request
// URL (including query string). The cache is content-addressed by URL and
// never partially populated — writes are atomic replacements.
type CacheEntry struct {
	URL          string
	ETag         string
	LastModified string
	Body         string
	FetchedAt    time.Time
}
