// Package authcache holds a read-through cache of authenticated identities so
// token verification does not hit the database on every request. Entries are
// advisory: authentication correctness never depends on a cache hit, only on
// the token itself and the database fallback.
package authcache

import (
	"sync"
	"time"

	"dmchat/internal/storage"
)

type entry struct {
	user       storage.User
	insertedAt time.Time
}

// Cache maps user ids to their resolved identity with a fixed TTL.
// Expiry is lazy: entries are dropped when observed stale on Get.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]entry
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[int64]entry),
	}
}

// Store upserts the entry keyed by user id, replacing any prior entry and its timestamp
func (c *Cache) Store(u storage.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[u.ID] = entry{
		user:       u,
		insertedAt: time.Now(),
	}
}

// Get returns the cached identity if present and not expired. Callers falling
// back to the database must Store the looked-up identity afterwards.
func (c *Cache) Get(id int64) (storage.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return storage.User{}, false
	}

	if time.Since(e.insertedAt) > c.ttl {
		delete(c.entries, id)
		return storage.User{}, false
	}

	return e.user, true
}

// Remove drops the entry for the user so a stale identity is never served
// after a credential or account change.
func (c *Cache) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
}

// Len reports the number of entries currently held, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
