package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	// adminCachePrefix is the Redis key prefix for allow-list lookups.
	adminCachePrefix = "admin:email:"
	// adminCacheTTL bounds how stale a cached allow-list answer can be.
	// The store remains the source of truth; removing an admin takes at
	// most this long to propagate.
	adminCacheTTL = 5 * time.Minute
)

// GetAdminEmail returns the cached allow-list answer for an email.
// The second return value is false on a cache miss.
func (c *Cache) GetAdminEmail(ctx context.Context, email string) (bool, bool) {
	val, err := c.client.Get(ctx, adminCacheKey(email)).Result()
	if err != nil {
		// Cache miss or Redis error - fall through to the store
		return false, false
	}
	return val == "1", true
}

// SetAdminEmail caches an allow-list answer for an email.
func (c *Cache) SetAdminEmail(ctx context.Context, email string, isAdmin bool) error {
	val := "0"
	if isAdmin {
		val = "1"
	}
	return c.client.Set(ctx, adminCacheKey(email), val, adminCacheTTL).Err()
}

// adminCacheKey hashes the email so raw addresses never land in Redis.
func adminCacheKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return adminCachePrefix + hex.EncodeToString(sum[:8])
}
