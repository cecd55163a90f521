package entitlement

import (
	"context"

	"github.com/mastrohq/mastro/internal/cache"
)

// CachedAdminDirectory answers allow-list lookups from Redis first and
// falls back to the store on a miss. Cache failures degrade to store
// lookups; they never fail the request.
type CachedAdminDirectory struct {
	store AdminDirectory
	cache *cache.Cache
}

// NewCachedAdminDirectory wraps a store-backed directory with a cache.
func NewCachedAdminDirectory(store AdminDirectory, c *cache.Cache) *CachedAdminDirectory {
	return &CachedAdminDirectory{store: store, cache: c}
}

// IsAdminEmail implements AdminDirectory.
func (d *CachedAdminDirectory) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	if admin, ok := d.cache.GetAdminEmail(ctx, email); ok {
		return admin, nil
	}

	admin, err := d.store.IsAdminEmail(ctx, email)
	if err != nil {
		return false, err
	}

	_ = d.cache.SetAdminEmail(ctx, email, admin)
	return admin, nil
}
