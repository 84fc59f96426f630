package driven

import (
	"context"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// HTTPCache is the driven port for C1: a keyed store of ETag/Last-Modified/
// body/timestamp entries supporting conditional GET. Get returns nil, nil
// when no entry exists for url. Set is an atomic replace — concurrent
// readers must see either the prior or the new entry in full, never a mix.
type HTTPCache interface {
	Get(ctx context.Context, url string) (*model.CacheEntry, error)
	Set(ctx context.Context, entry model.CacheEntry) error
}
