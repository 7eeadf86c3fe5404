package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const sessionKeyPrefix = "convoca:session:"

// SessionEntry is the cached ordering of one session's last search.
type SessionEntry struct {
	GrantIDs  []int64   `json:"grant_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionCache stores the ordered grant-id list of a session's most recent
// search so "show more" turns can page without re-running retrieval. Each
// new search overwrites the whole entry.
type SessionCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionCache creates a session cache on top of the given store.
func NewSessionCache(store Store, ttl time.Duration) *SessionCache {
	return &SessionCache{store: store, ttl: ttl, now: time.Now}
}

// Put overwrites the session's cached grant ordering.
func (c *SessionCache) Put(ctx context.Context, sessionID string, grantIDs []int64) error {
	entry := SessionEntry{GrantIDs: grantIDs, CreatedAt: c.now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode session entry: %w", err)
	}
	return c.store.Set(ctx, sessionKeyPrefix+sessionID, data, c.ttl)
}

// Get returns the cached grant ordering, or (nil, false) when the session
// has no live entry. Store failures are treated as a miss by callers.
func (c *SessionCache) Get(ctx context.Context, sessionID string) ([]int64, bool, error) {
	data, err := c.store.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	var entry SessionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode session entry: %w", err)
	}
	return entry.GrantIDs, true, nil
}
