// Package cache provides a TTL-bounded in-memory store for candle series
// and generated signals.
package cache

import (
	"sync"
	"time"

	"github.com/quantfold/ictsignal/models"
)

type candleEntry struct {
	candles  []models.Candle
	storedAt time.Time
}

type signalEntry struct {
	signal   *models.SignalResult
	storedAt time.Time
}

// Cache stores candles per (symbol, interval) and signals per symbol.
// Expired entries are removed on read. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	candles map[string]map[models.Interval]candleEntry
	signals map[string]signalEntry
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		candles: make(map[string]map[models.Interval]candleEntry),
		signals: make(map[string]signalEntry),
	}
}

// Candles returns the cached series for a symbol/interval, or false when
// missing or expired.
func (c *Cache) Candles(symbol string, interval models.Interval) ([]models.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byInterval, ok := c.candles[symbol]
	if !ok {
		return nil, false
	}
	entry, ok := byInterval[interval]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(byInterval, interval)
		if len(byInterval) == 0 {
			delete(c.candles, symbol)
		}
		return nil, false
	}
	return entry.candles, true
}

// SetCandles caches a series for a symbol/interval.
func (c *Cache) SetCandles(symbol string, interval models.Interval, candles []models.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byInterval, ok := c.candles[symbol]
	if !ok {
		byInterval = make(map[models.Interval]candleEntry)
		c.candles[symbol] = byInterval
	}
	byInterval[interval] = candleEntry{candles: candles, storedAt: time.Now()}
}

// Signal returns the cached signal for a symbol, or false when missing or
// expired.
func (c *Cache) Signal(symbol string) (*models.SignalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.signals[symbol]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.signals, symbol)
		return nil, false
	}
	return entry.signal, true
}

// SetSignal caches a generated signal.
func (c *Cache) SetSignal(symbol string, signal *models.SignalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals[symbol] = signalEntry{signal: signal, storedAt: time.Now()}
}

// Invalidate drops all cached data for a symbol.
func (c *Cache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.candles, symbol)
	delete(c.signals, symbol)
}

// Stats reports cached entry counts.
func (c *Cache) Stats() (candleEntries, signalEntries int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, byInterval := range c.candles {
		candleEntries += len(byInterval)
	}
	return candleEntries, len(c.signals)
}
