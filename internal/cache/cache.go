package cache

import (
	"sync"
	"time"

	"github.com/caesar-quant/caesar/internal/model"
)

// entry is a cached candle batch.
type entry struct {
	candles   []model.Candle
	expiresAt time.Time
}

// CandleCache is an in-memory TTL cache for fetched candle batches, keyed by
// symbol and minute level. It keeps repeat pipeline runs inside the provider
// rate limit. A nil *CandleCache is a valid no-op cache.
type CandleCache struct {
	mu    sync.RWMutex
	store map[string]*entry
	ttl   time.Duration
	stop  chan struct{}
}

// New creates a candle cache with the given TTL and starts its cleanup
// goroutine.
func New(ttl time.Duration) *CandleCache {
	c := &CandleCache{
		store: make(map[string]*entry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func key(symbol string, level model.MinuteLevel) string {
	return symbol + "|" + string(level)
}

// Get retrieves cached candles if present and not expired.
func (c *CandleCache) Get(symbol string, level model.MinuteLevel) ([]model.Candle, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.store[key(symbol, level)]
	if !exists {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.candles, true
}

// Set stores a candle batch.
func (c *CandleCache) Set(symbol string, level model.MinuteLevel, candles []model.Candle) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key(symbol, level)] = &entry{
		candles:   candles,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Clear removes all entries.
func (c *CandleCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*entry)
}

// Len reports the number of live entries.
func (c *CandleCache) Len() int {
	if c == nil {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := time.Now()
	for _, e := range c.store {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine.
func (c *CandleCache) Close() {
	if c == nil {
		return
	}
	close(c.stop)
}

// cleanup periodically drops expired entries.
func (c *CandleCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.store {
				if now.After(e.expiresAt) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
