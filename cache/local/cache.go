package local

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

var (
	ErrNotFound   = errors.New("cache: key not found")
	ErrNotInteger = errors.New("cache: value is not an integer")
)

type Config struct {
	// SweepInterval is how often expired keys are dropped. Reads never
	// return an expired key regardless.
	SweepInterval time.Duration
}

type item struct {
	val      string
	deadline time.Time // zero: no expiry
}

func (it item) liveAt(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// Cache is the single-process backend used when no Redis address is
// configured. Sessions and counters vanish on restart.
type Cache struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config) *Cache {
	every := cfg.SweepInterval
	if every <= 0 {
		every = 30 * time.Second
	}
	c := &Cache{
		items: make(map[string]item),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go c.sweepLoop(every)
	return c
}

// Close stops the sweeper. Safe to call twice.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, it := range c.items {
		if !it.liveAt(now) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// get must be called with mu held.
func (c *Cache) get(key string) (item, bool) {
	it, ok := c.items[key]
	if !ok {
		return item{}, false
	}
	if !it.liveAt(c.now()) {
		delete(c.items, key)
		return item{}, false
	}
	return it, true
}

// deadline must be called with mu held.
func (c *Cache) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.get(key)
	if !ok {
		return "", ErrNotFound
	}
	return it.val, nil
}

func (c *Cache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.items[key] = item{val: value, deadline: c.deadline(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.get(key)
	return ok, nil
}

func (c *Cache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.get(key); held {
		return false, nil
	}
	c.items[key] = item{val: value, deadline: c.deadline(ttl)}
	return true, nil
}

func (c *Cache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.get(key)
	if !ok {
		return ErrNotFound
	}
	it.deadline = c.deadline(ttl)
	c.items[key] = it
	return nil
}

// IncrBy leaves the deadline of an existing key untouched, as Redis INCRBY does.
func (c *Cache) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, _ := c.get(key)
	var cur int64
	if it.val != "" {
		n, err := strconv.ParseInt(it.val, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		cur = n
	}
	cur += delta
	it.val = strconv.FormatInt(cur, 10)
	c.items[key] = it
	return cur, nil
}
