// Package memory resolves conversation state through three tiers: a
// process-local cache, a shared fast store and a cold message log.
package memory

import (
	"container/list"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type localEntry struct {
	phone   string
	state   *model.ConversationState
	expires time.Time
}

// LocalCache is a bounded TTL cache with least-recently-used eviction.
// States are cloned on the way in and out.
type LocalCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is least recently used
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func NewLocalCache(ttl time.Duration, maxSize int) *LocalCache {
	if maxSize <= 0 {
		maxSize = 10_000
	}
	return &LocalCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *LocalCache) Get(phone string) (*model.ConversationState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[phone]
	if !ok {
		return nil, false
	}
	e := el.Value.(*localEntry)
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.removeLocked(el)
		return nil, false
	}
	c.order.MoveToBack(el)
	return e.state.Clone(), true
}

func (c *LocalCache) Put(phone string, state *model.ConversationState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[phone]; ok {
		e := el.Value.(*localEntry)
		e.state = state.Clone()
		e.expires = expires
		c.order.MoveToBack(el)
		return
	}
	for len(c.entries) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	c.entries[phone] = c.order.PushBack(&localEntry{phone: phone, state: state.Clone(), expires: expires})
}

func (c *LocalCache) Delete(phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[phone]; ok {
		c.removeLocked(el)
	}
}

func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LocalCache) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*localEntry)
	delete(c.entries, e.phone)
}
