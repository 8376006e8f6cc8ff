package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const DefaultTTL = time.Hour

type entry struct {
	insertedAt time.Time
	postings   []models.Posting
}

// Cache memoizes adapter responses for a fixed TTL. Expiry is lazy: stale
// entries are dropped when read, never swept, and there is no size cap.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	data map[string]entry
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:  ttl,
		now:  time.Now,
		data: map[string]entry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the composite cache key. The source prefix keeps adapters
// sharing one cache from colliding.
func Key(source, what, where string, page, pageSize int) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d",
		source,
		strings.ToLower(what),
		strings.ToLower(where),
		page,
		pageSize,
	)
}

func (c *Cache) Get(key string) ([]models.Posting, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.data, key)
		return nil, false
	}
	return e.postings, true
}

func (c *Cache) Set(key string, postings []models.Posting) {
	if postings == nil {
		postings = []models.Posting{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{insertedAt: c.now(), postings: postings}
}

// Len counts stored entries, expired ones included until they are read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
