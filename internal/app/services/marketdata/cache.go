// Package marketdata keeps the in-memory real-time caches: the latest tick
// and per-hour tick buckets for each stock, and the latest asking price.
package marketdata

import (
	"sync"
	"time"

	"github.com/stockpredict/server/internal/app/domain/market"
	"github.com/stockpredict/server/internal/marketclock"
)

// TickCache holds ticks received during the current trading day. Ticks are
// bucketed by KST hour so candles can be aggregated when the session ends.
// All cached data expires at 18:00 KST.
type TickCache struct {
	mu      sync.RWMutex
	latest  map[string]market.PriceTick
	buckets map[string]map[int][]market.PriceTick
	day     time.Time
	now     func() time.Time
}

// NewTickCache creates an empty tick cache.
func NewTickCache() *TickCache {
	return &TickCache{
		latest:  make(map[string]market.PriceTick),
		buckets: make(map[string]map[int][]market.PriceTick),
		now:     marketclock.Now,
	}
}

// SetClock overrides the cache's time source, used in tests.
func (c *TickCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Add records a tick. A tick from a new trading day resets the cache first.
func (c *TickCache) Add(tick market.PriceTick) {
	c.AddAt(tick, c.now())
}

// AddAt records a tick as if it arrived at the given time.
func (c *TickCache) AddAt(tick market.PriceTick, now time.Time) {
	tick.ReceivedAt = now

	c.mu.Lock()
	defer c.mu.Unlock()

	day := marketclock.Midnight(now)
	if !c.day.Equal(day) {
		c.resetLocked(day)
	}

	c.latest[tick.StockCode] = tick

	hour := now.In(marketclock.KST).Hour()
	bucket, ok := c.buckets[tick.StockCode]
	if !ok {
		bucket = make(map[int][]market.PriceTick)
		c.buckets[tick.StockCode] = bucket
	}
	bucket[hour] = append(bucket[hour], tick)
}

// Latest returns the most recent tick for a stock.
func (c *TickCache) Latest(stockCode string) (market.PriceTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.expiredLocked() {
		return market.PriceTick{}, false
	}
	tick, ok := c.latest[stockCode]
	return tick, ok
}

// LatestAll returns the most recent tick for each of the given stocks.
// A nil slice means every cached stock.
func (c *TickCache) LatestAll(stockCodes []string) map[string]market.PriceTick {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]market.PriceTick, len(stockCodes))
	if c.expiredLocked() {
		return result
	}
	if stockCodes == nil {
		for code, tick := range c.latest {
			result[code] = tick
		}
		return result
	}
	for _, code := range stockCodes {
		if tick, ok := c.latest[code]; ok {
			result[code] = tick
		}
	}
	return result
}

// HourTicks returns the ticks recorded for a stock during the given KST hour.
func (c *TickCache) HourTicks(stockCode string, hour int) []market.PriceTick {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.expiredLocked() {
		return nil
	}
	bucket := c.buckets[stockCode]
	if bucket == nil {
		return nil
	}
	return append([]market.PriceTick(nil), bucket[hour]...)
}

// ExtractAll removes and returns every hour bucket, keyed by stock code.
// It is called when the session-end command arrives, before the candle flush.
func (c *TickCache) ExtractAll() map[string]map[int][]market.PriceTick {
	c.mu.Lock()
	defer c.mu.Unlock()

	extracted := c.buckets
	c.buckets = make(map[string]map[int][]market.PriceTick)
	return extracted
}

// Reset drops everything cached.
func (c *TickCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(marketclock.Midnight(c.now()))
}

// Size returns the number of stocks with a cached latest tick.
func (c *TickCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.latest)
}

func (c *TickCache) resetLocked(day time.Time) {
	c.latest = make(map[string]market.PriceTick)
	c.buckets = make(map[string]map[int][]market.PriceTick)
	c.day = day
}

// expiredLocked reports whether the cached day's data is past its 18:00
// KST expiry.
func (c *TickCache) expiredLocked() bool {
	if c.day.IsZero() {
		return false
	}
	return c.now().After(marketclock.CacheExpiry(c.day))
}

// AskingCache holds the latest asking price per stock for the current day.
// The cache resets at the 08:00 pre-open of each new day.
type AskingCache struct {
	mu     sync.RWMutex
	latest map[string]market.AskingPrice
	day    time.Time
	now    func() time.Time
}

// NewAskingCache creates an empty asking-price cache.
func NewAskingCache() *AskingCache {
	return &AskingCache{
		latest: make(map[string]market.AskingPrice),
		now:    marketclock.Now,
	}
}

// SetClock overrides the cache's time source, used in tests.
func (c *AskingCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Add records an asking price snapshot.
func (c *AskingCache) Add(ap market.AskingPrice) {
	now := c.now()
	ap.ReceivedAt = now

	c.mu.Lock()
	defer c.mu.Unlock()

	day := marketclock.Midnight(now)
	if !c.day.Equal(day) {
		c.latest = make(map[string]market.AskingPrice)
		c.day = day
	}
	c.latest[ap.StockCode] = ap
}

// Latest returns the most recent asking price for a stock.
func (c *AskingCache) Latest(stockCode string) (market.AskingPrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.day.Equal(marketclock.Midnight(c.now())) {
		return market.AskingPrice{}, false
	}
	ap, ok := c.latest[stockCode]
	return ap, ok
}

// Reset drops everything cached.
func (c *AskingCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = make(map[string]market.AskingPrice)
	c.day = time.Time{}
}
