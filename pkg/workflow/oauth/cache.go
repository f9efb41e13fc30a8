package oauth

import (
	"sync"
	"time"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

// cacheKey is the Mode-B access-token cache key: (credential_name,
// workflow_id). Spec §9's Open Question is resolved in favor of
// including workflow_id, matching the original source.
type cacheKey struct {
	credentialName string
	workflowID     string
}

const (
	cacheMaxCapacity = 1024
	cacheTTL         = 3600 * time.Second
)

// accessTokenCache is a bounded, per-entry-TTL in-memory map. No
// third-party bounded+TTL cache exists in the example pack for
// process-local state (see DESIGN.md); a hand-rolled RWMutex-guarded map
// is the justified stdlib choice here.
type accessTokenCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

type cacheEntry struct {
	token     model.OAuthAccessToken
	expiresAt time.Time
}

func newAccessTokenCache() *accessTokenCache {
	return &accessTokenCache{entries: make(map[cacheKey]cacheEntry)}
}

func (c *accessTokenCache) get(key cacheKey, now time.Time) (model.OAuthAccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) || entry.token.ExpiresAt <= now.Unix() {
		return model.OAuthAccessToken{}, false
	}
	return entry.token, true
}

func (c *accessTokenCache) put(key cacheKey, token model.OAuthAccessToken, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= cacheMaxCapacity {
		c.evictOneLocked()
	}
	c.entries[key] = cacheEntry{token: token, expiresAt: now.Add(cacheTTL)}
}

// evictOneLocked drops the entry with the earliest cache expiry (every
// entry gets the same TTL, so this is the oldest insertion) to bound
// capacity. Called with c.mu already held for writing.
func (c *accessTokenCache) evictOneLocked() {
	var oldestKey cacheKey
	var oldestAt time.Time
	first := true
	for k, v := range c.entries {
		if first || v.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = k, v.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
