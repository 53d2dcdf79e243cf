package recent

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Entry is one applied transfer, stamped with the time at which the delivery
// pipeline applied it. Entries are immutable after creation.
type Entry struct {
	Timestamp time.Time
	Sender    string
	Recipient string
	Amount    uint64
}

// Cache is a capacity-bounded record of the most recently applied transfers.
// When full, the oldest entry is evicted first.
//
// The backing store is an LRU cache keyed by a monotonically increasing
// counter. Entries are inserted and never looked up individually, so the LRU
// recency order degenerates to insertion order and eviction is strict FIFO.
type Cache struct {
	sync.Mutex
	entries *lru.Cache
	counter uint64
}

// NewCache instantiates a Cache holding up to capacity entries.
func NewCache(capacity int) (*Cache, error) {
	entries, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}

	return &Cache{
		entries: entries,
	}, nil
}

// Put appends an entry for the given transfer, stamped with the current time,
// evicting the oldest entry if the cache is full. It never rejects an entry on
// content grounds.
func (c *Cache) Put(sender string, recipient string, amount uint64) error {
	c.Lock()
	defer c.Unlock()

	c.entries.Add(c.counter, &Entry{
		Timestamp: time.Now(),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	})
	c.counter++

	return nil
}

// GetAll returns the retained entries, ordered from oldest to most recently
// inserted. It is safe to call concurrently with Put.
func (c *Cache) GetAll() []*Entry {
	c.Lock()
	defer c.Unlock()

	keys := c.entries.Keys()

	res := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		if entry, ok := c.entries.Peek(key); ok {
			res = append(res, entry.(*Entry))
		}
	}

	return res
}

// Len returns the number of retained entries.
func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()

	return c.entries.Len()
}
