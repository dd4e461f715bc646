package candles

import (
	"sort"
	"time"

	"github.com/stockpredict/server/internal/app/domain/candle"
	"github.com/stockpredict/server/internal/app/domain/market"
	"github.com/stockpredict/server/internal/marketclock"
)

// AggregateHour folds the ticks of one KST hour into a candle. Ticks are
// ordered by arrival time before aggregation.
func AggregateHour(stockCode string, date time.Time, hour int, ticks []market.PriceTick) (candle.HourCandle, bool) {
	if len(ticks) == 0 {
		return candle.HourCandle{}, false
	}

	sorted := append([]market.PriceTick(nil), ticks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt) })

	c := candle.HourCandle{
		StockCode:  stockCode,
		Date:       marketclock.Midnight(date),
		Hour:       hour,
		Open:       sorted[0].CurrentPrice.Float(),
		Close:      sorted[len(sorted)-1].CurrentPrice.Float(),
		High:       sorted[0].CurrentPrice.Float(),
		Low:        sorted[0].CurrentPrice.Float(),
		TradeCount: int64(len(sorted)),
	}
	for _, tick := range sorted {
		price := tick.CurrentPrice.Float()
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Volume += tick.TradeVolume.Int()
	}
	return c, true
}

// AggregateMinutes folds a day's ticks into fixed-interval minute candles.
func AggregateMinutes(stockCode string, interval int, ticks []market.PriceTick) []candle.MinuteCandle {
	if interval <= 0 {
		interval = 1
	}

	sorted := append([]market.PriceTick(nil), ticks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt) })

	byBucket := make(map[time.Time]*candle.MinuteCandle)
	var order []time.Time
	for _, tick := range sorted {
		at := tick.ReceivedAt.In(marketclock.KST)
		bucket := at.Truncate(time.Duration(interval) * time.Minute)

		price := tick.CurrentPrice.Float()
		c, ok := byBucket[bucket]
		if !ok {
			c = &candle.MinuteCandle{
				StockCode: stockCode,
				Date:      marketclock.Midnight(at),
				Time:      bucket,
				Interval:  interval,
				Open:      price,
				High:      price,
				Low:       price,
			}
			byBucket[bucket] = c
			order = append(order, bucket)
		}
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Close = price
		c.Volume += tick.TradeVolume.Int()
		c.TradeCount++
	}

	result := make([]candle.MinuteCandle, 0, len(order))
	for _, bucket := range order {
		result = append(result, *byBucket[bucket])
	}
	return result
}
