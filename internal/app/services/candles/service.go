// Package candles serves OHLCV candles assembled from persisted rows and
// the live tick cache, and flushes cached ticks into hour candles when the
// trading session ends.
package candles

import (
	"context"
	"fmt"
	"time"

	"github.com/stockpredict/server/internal/app/domain/candle"
	"github.com/stockpredict/server/internal/app/services/marketdata"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/marketclock"
	"github.com/stockpredict/server/pkg/logger"
)

// Data sources reported alongside candle responses.
const (
	SourceDB      = "db"
	SourceCache   = "cache"
	SourceDBCache = "db+cache"
	SourceNone    = "none"
)

// Service answers candle queries and owns the session-end flush.
type Service struct {
	store storage.CandleStore
	ticks *marketdata.TickCache
	log   *logger.Logger
}

// New constructs a candle service.
func New(store storage.CandleStore, ticks *marketdata.TickCache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("candles")
	}
	return &Service{store: store, ticks: ticks, log: log}
}

// HourCandles returns the hour candles for a stock and date. For today,
// persisted candles are merged with candles aggregated on the fly from the
// tick cache; cached hours override nothing already persisted.
func (s *Service) HourCandles(ctx context.Context, stockCode string, date time.Time) ([]candle.HourCandle, string, error) {
	if stockCode == "" {
		return nil, SourceNone, fmt.Errorf("stock_code is required")
	}

	persisted, err := s.store.ListHourCandles(ctx, stockCode, date)
	if err != nil {
		return nil, SourceNone, err
	}

	var cached []candle.HourCandle
	if marketclock.Midnight(date).Equal(marketclock.Today()) {
		have := make(map[int]bool, len(persisted))
		for _, c := range persisted {
			have[c.Hour] = true
		}
		for hour := 0; hour < 24; hour++ {
			if !marketclock.SessionHour(hour) || have[hour] {
				continue
			}
			if c, ok := AggregateHour(stockCode, date, hour, s.ticks.HourTicks(stockCode, hour)); ok {
				cached = append(cached, c)
			}
		}
	}

	result := append(persisted, cached...)
	switch {
	case len(persisted) > 0 && len(cached) > 0:
		return result, SourceDBCache, nil
	case len(persisted) > 0:
		return result, SourceDB, nil
	case len(cached) > 0:
		return result, SourceCache, nil
	default:
		return nil, SourceNone, nil
	}
}

// MinuteCandles returns fixed-interval minute candles for a stock and date.
// Today's candles are aggregated from the tick cache; past dates come from
// the store.
func (s *Service) MinuteCandles(ctx context.Context, stockCode string, date time.Time, interval int) ([]candle.MinuteCandle, string, error) {
	if stockCode == "" {
		return nil, SourceNone, fmt.Errorf("stock_code is required")
	}
	if interval <= 0 {
		interval = 1
	}

	if marketclock.Midnight(date).Equal(marketclock.Today()) {
		var all []candle.MinuteCandle
		for hour := 0; hour < 24; hour++ {
			if !marketclock.SessionHour(hour) {
				continue
			}
			hourTicks := s.ticks.HourTicks(stockCode, hour)
			if len(hourTicks) == 0 {
				continue
			}
			all = append(all, AggregateMinutes(stockCode, interval, hourTicks)...)
		}
		if len(all) > 0 {
			return all, SourceCache, nil
		}
	}

	persisted, err := s.store.ListMinuteCandles(ctx, stockCode, date, interval)
	if err != nil {
		return nil, SourceNone, err
	}
	if len(persisted) == 0 {
		return nil, SourceNone, nil
	}
	return persisted, SourceDB, nil
}

// FlushSession drains the tick cache and persists one hour candle per
// stock per session hour. It is invoked when the websocket relay reports
// the trading session has stopped.
func (s *Service) FlushSession(ctx context.Context) (int, error) {
	date := marketclock.Today()
	extracted := s.ticks.ExtractAll()

	flushed := 0
	for stockCode, hours := range extracted {
		for hour, ticks := range hours {
			if !marketclock.SessionHour(hour) {
				continue
			}
			c, ok := AggregateHour(stockCode, date, hour, ticks)
			if !ok {
				continue
			}
			if _, err := s.store.UpsertHourCandle(ctx, c); err != nil {
				return flushed, fmt.Errorf("flush %s hour %d: %w", stockCode, hour, err)
			}
			flushed++
		}
	}

	s.log.WithField("candles", flushed).WithField("stocks", len(extracted)).Info("session candles flushed")
	return flushed, nil
}
