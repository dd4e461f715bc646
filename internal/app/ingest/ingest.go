// Package ingest turns Kafka messages from the trading engine and the
// market data relay into state changes: daily plans, order bookkeeping,
// tick caching and the session-end candle flush.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockpredict/server/internal/app/domain/market"
	"github.com/stockpredict/server/internal/app/domain/stock"
	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/metrics"
	"github.com/stockpredict/server/internal/app/services/candles"
	"github.com/stockpredict/server/internal/app/services/marketdata"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/marketclock"
	"github.com/stockpredict/server/pkg/logger"
)

// Stores groups the persistence the ingestor writes to.
type Stores struct {
	Accounts   storage.AccountStore
	Strategies storage.StrategyStore
	Daily      storage.DailyStrategyStore
	Orders     storage.OrderStore
	Stocks     storage.StockStore
}

// Ingestor handles inbound Kafka messages.
type Ingestor struct {
	stores  Stores
	ticks   *marketdata.TickCache
	asking  *marketdata.AskingCache
	candles *candles.Service
	log     *logger.Logger

	pending *pendingResults
}

// New constructs an ingestor.
func New(stores Stores, ticks *marketdata.TickCache, asking *marketdata.AskingCache, candleSvc *candles.Service, log *logger.Logger) *Ingestor {
	if log == nil {
		log = logger.NewDefault("ingest")
	}
	return &Ingestor{
		stores:  stores,
		ticks:   ticks,
		asking:  asking,
		candles: candleSvc,
		log:     log,
		pending: newPendingResults(),
	}
}

// HandleDailyStrategy stores the morning trading plan: one DailyStrategy
// per user strategy entry plus its stocks. Stock metadata seen in the
// plan is upserted along the way.
func (i *Ingestor) HandleDailyStrategy(ctx context.Context, value []byte) error {
	var msg market.DailyStrategyMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("daily strategy message: %w", err)
	}

	ts := parseTimestamp(msg.Timestamp)
	for _, entry := range msg.Strategies {
		if entry.UserStrategyID == 0 {
			i.log.Warn("daily strategy entry without user_strategy_id skipped")
			continue
		}
		if _, err := i.stores.Strategies.GetUserStrategy(ctx, entry.UserStrategyID); err != nil {
			i.log.WithError(err).WithField("user_strategy_id", entry.UserStrategyID).Warn("daily strategy for unknown subscription skipped")
			continue
		}

		// Re-delivered plans for the same day are replaced by position:
		// reuse the existing row if one exists.
		ds, err := i.stores.Daily.GetDailyStrategyByDate(ctx, entry.UserStrategyID, ts)
		if err != nil {
			ds, err = i.stores.Daily.CreateDailyStrategy(ctx, strategy.DailyStrategy{
				UserStrategyID: entry.UserStrategyID,
				Timestamp:      ts,
				BuyAmount:      entry.BuyAmount.Float(),
			})
			if err != nil {
				return fmt.Errorf("create daily strategy: %w", err)
			}
		}

		for _, sm := range entry.Stocks {
			if sm.StockCode == "" {
				continue
			}
			if _, err := i.stores.Daily.GetDailyStrategyStockByCode(ctx, ds.ID, sm.StockCode); err == nil {
				continue
			}
			_, err := i.stores.Daily.CreateDailyStrategyStock(ctx, strategy.DailyStrategyStock{
				DailyStrategyID: ds.ID,
				StockCode:       sm.StockCode,
				StockName:       sm.StockName,
				Exchange:        sm.Exchange,
				StockOpen:       sm.StockOpen.Float(),
				TargetPrice:     sm.TargetPrice.Float(),
				TargetQuantity:  sm.TargetQuantity.Int(),
				TargetSellPrice: sm.TargetSellPrice.Float(),
				StopLossPrice:   sm.StopLossPrice.Float(),
			})
			if err != nil {
				return fmt.Errorf("create daily strategy stock: %w", err)
			}

			if i.stores.Stocks != nil {
				_, err := i.stores.Stocks.UpsertStock(ctx, stock.Metadata{
					Code:     sm.StockCode,
					Name:     sm.StockName,
					Exchange: sm.Exchange,
					IsActive: true,
				})
				if err != nil {
					i.log.WithError(err).WithField("stock_code", sm.StockCode).Warn("stock metadata upsert failed")
				}
			}
		}
	}

	i.log.WithField("strategies", len(msg.Strategies)).Info("daily strategy plan stored")
	return nil
}

// HandlePriceTick caches a real-time tick.
func (i *Ingestor) HandlePriceTick(_ context.Context, value []byte) error {
	var tick market.PriceTick
	if err := json.Unmarshal(value, &tick); err != nil {
		return fmt.Errorf("price tick message: %w", err)
	}
	if tick.StockCode == "" {
		return fmt.Errorf("price tick without stock_code")
	}
	i.ticks.Add(tick)
	metrics.SetTickCacheSize(i.ticks.Size())
	return nil
}

// HandleAskingPrice caches an order book snapshot.
func (i *Ingestor) HandleAskingPrice(_ context.Context, value []byte) error {
	var ap market.AskingPrice
	if err := json.Unmarshal(value, &ap); err != nil {
		return fmt.Errorf("asking price message: %w", err)
	}
	if ap.StockCode == "" {
		return fmt.Errorf("asking price without stock_code")
	}
	i.asking.Add(ap)
	return nil
}

// HandleWSCommand reacts to relay control commands. STOP marks the end of
// the trading session and triggers the hour candle flush.
func (i *Ingestor) HandleWSCommand(ctx context.Context, value []byte) error {
	var cmd market.WSCommand
	if err := json.Unmarshal(value, &cmd); err != nil {
		return fmt.Errorf("ws command message: %w", err)
	}

	switch cmd.Command {
	case market.CommandStop:
		flushed, err := i.candles.FlushSession(ctx)
		if err != nil {
			return fmt.Errorf("session flush: %w", err)
		}
		i.log.WithField("candles", flushed).Info("session stop processed")
	case market.CommandStart:
		i.log.Info("session start command received")
	default:
		i.log.WithField("command", cmd.Command).Warn("unknown ws command ignored")
	}
	return nil
}

// parseTimestamp parses engine timestamps, falling back to now.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, marketclock.KST); err == nil {
			return ts
		}
	}
	return marketclock.Now()
}
