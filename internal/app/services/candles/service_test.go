package candles

import (
	"context"
	"testing"
	"time"

	"github.com/stockpredict/server/internal/app/domain/candle"
	"github.com/stockpredict/server/internal/app/domain/market"
	"github.com/stockpredict/server/internal/app/services/marketdata"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/marketclock"
)

func tickAt(price float64, at time.Time) market.PriceTick {
	return market.PriceTick{StockCode: "005930", CurrentPrice: market.Number(price), TradeVolume: 10, ReceivedAt: at}
}

func TestAggregateHour(t *testing.T) {
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, marketclock.KST)
	ticks := []market.PriceTick{
		tickAt(70200, base.Add(2*time.Minute)),
		tickAt(70000, base),
		tickAt(69800, base.Add(5*time.Minute)),
		tickAt(70100, base.Add(50*time.Minute)),
	}

	c, ok := AggregateHour("005930", base, 9, ticks)
	if !ok {
		t.Fatalf("expected candle")
	}
	if c.Open != 70000 {
		t.Fatalf("open = %v, want 70000", c.Open)
	}
	if c.Close != 70100 {
		t.Fatalf("close = %v, want 70100", c.Close)
	}
	if c.High != 70200 || c.Low != 69800 {
		t.Fatalf("high/low = %v/%v, want 70200/69800", c.High, c.Low)
	}
	if c.Volume != 40 {
		t.Fatalf("volume = %d, want 40", c.Volume)
	}
	if c.TradeCount != 4 {
		t.Fatalf("trade count = %d, want 4", c.TradeCount)
	}
}

func TestAggregateHourEmpty(t *testing.T) {
	if _, ok := AggregateHour("005930", time.Now(), 9, nil); ok {
		t.Fatalf("empty tick list should not produce a candle")
	}
}

func TestAggregateMinutes(t *testing.T) {
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, marketclock.KST)
	ticks := []market.PriceTick{
		tickAt(70000, base.Add(10*time.Second)),
		tickAt(70100, base.Add(40*time.Second)),
		tickAt(70050, base.Add(70*time.Second)),
	}

	result := AggregateMinutes("005930", 1, ticks)
	if len(result) != 2 {
		t.Fatalf("candles = %d, want 2", len(result))
	}
	if result[0].Open != 70000 || result[0].Close != 70100 {
		t.Fatalf("first candle open/close = %v/%v", result[0].Open, result[0].Close)
	}
	if result[1].Open != 70050 {
		t.Fatalf("second candle open = %v, want 70050", result[1].Open)
	}
}

func TestHourCandlesFromDB(t *testing.T) {
	store := memory.New()
	ticks := marketdata.NewTickCache()
	svc := New(store, ticks, nil)
	ctx := context.Background()

	date := time.Date(2025, time.March, 5, 0, 0, 0, 0, marketclock.KST)
	_, err := store.UpsertHourCandle(ctx, candle.HourCandle{StockCode: "005930", Date: date, Hour: 9, Open: 70000, Close: 70100})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	result, source, err := svc.HourCandles(ctx, "005930", date)
	if err != nil {
		t.Fatalf("hour candles: %v", err)
	}
	if source != SourceDB {
		t.Fatalf("source = %s, want %s", source, SourceDB)
	}
	if len(result) != 1 || result[0].Hour != 9 {
		t.Fatalf("unexpected candles %+v", result)
	}
}

func TestHourCandlesNone(t *testing.T) {
	svc := New(memory.New(), marketdata.NewTickCache(), nil)

	result, source, err := svc.HourCandles(context.Background(), "005930", time.Date(2025, time.March, 5, 0, 0, 0, 0, marketclock.KST))
	if err != nil {
		t.Fatalf("hour candles: %v", err)
	}
	if source != SourceNone || len(result) != 0 {
		t.Fatalf("source = %s with %d candles, want none", source, len(result))
	}
}

func TestFlushSession(t *testing.T) {
	store := memory.New()
	ticks := marketdata.NewTickCache()
	svc := New(store, ticks, nil)
	ctx := context.Background()

	// Hour 9 ticks plus an out-of-session bucket that must be skipped.
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, marketclock.KST)
	seedBucketTicks(ticks, base, []market.PriceTick{
		tickAt(70000, base),
		tickAt(70100, base.Add(time.Minute)),
	})
	seedBucketTicks(ticks, base.Add(8*time.Hour), []market.PriceTick{
		tickAt(70500, base.Add(8*time.Hour)),
	})

	flushed, err := svc.FlushSession(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if flushed != 1 {
		t.Fatalf("flushed = %d, want 1", flushed)
	}

	stored, err := store.ListHourCandles(ctx, "005930", marketclock.Today())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 || stored[0].Hour != 9 {
		t.Fatalf("unexpected stored candles %+v", stored)
	}
	if stored[0].Close != 70100 {
		t.Fatalf("close = %v, want 70100", stored[0].Close)
	}
}

// seedBucketTicks injects ticks into the cache as if they arrived at their
// ReceivedAt times.
func seedBucketTicks(c *marketdata.TickCache, _ time.Time, ticks []market.PriceTick) {
	for _, tick := range ticks {
		c.AddAt(tick, tick.ReceivedAt)
	}
}
