// ABOUTME: Thread-safe TTL cache for deduplicating Telegram updates.
// ABOUTME: Lazy pruning on access keeps duplicate update IDs from re-processing.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at      time.Time
	element *list.Element
}

// Cache tracks seen update keys with a TTL and a size cap. Expired entries
// are pruned lazily on access, so there is no background goroutine to manage.
// Insertion order is kept in a doubly-linked list for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List
	ttl     time.Duration
	maxSize int
}

// New creates a dedupe cache with the given TTL and maximum entry count.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen atomically checks whether the key was processed within the TTL and
// marks it if not. Returns true for duplicates, false for new keys.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.pruneExpired(now)

	if e, ok := c.seen[key]; ok && now.Sub(e.at) < c.ttl {
		// Duplicates refresh recency so hot keys aren't evicted early.
		e.at = now
		c.order.MoveToBack(e.element)
		return true
	}

	c.mark(key, now)
	return false
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneExpired(time.Now())
	return len(c.seen)
}

func (c *Cache) mark(key string, now time.Time) {
	if e, ok := c.seen[key]; ok {
		e.at = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{at: now, element: elem}
}

// pruneExpired drops expired entries from the front of the insertion-order
// list. Entries expire in insertion order because marks move keys to the back.
func (c *Cache) pruneExpired(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		key := front.Value.(string)
		e := c.seen[key]
		if now.Sub(e.at) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}
