// Package history builds per-account trading history reports from the
// persisted daily strategies.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/marketclock"
	"github.com/stockpredict/server/pkg/logger"
)

// Service serves trading history.
type Service struct {
	store storage.DailyStrategyStore
	log   *logger.Logger
}

// New constructs a history service.
func New(store storage.DailyStrategyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("history")
	}
	return &Service{store: store, log: log}
}

// DayResult is one trading day's outcome.
type DayResult struct {
	Date             string  `json:"date"`
	BuyAmount        float64 `json:"buy_amount"`
	SellAmount       float64 `json:"sell_amount"`
	ProfitAmount     float64 `json:"profit_amount"`
	ProfitRate       float64 `json:"profit_rate"`
	CumulativeProfit float64 `json:"cumulative_profit"`
}

// MonthlyReport is a month of daily results with totals.
type MonthlyReport struct {
	Year        int         `json:"year"`
	Month       int         `json:"month"`
	Days        []DayResult `json:"days"`
	TotalProfit float64     `json:"total_profit"`
	TradedDays  int         `json:"traded_days"`
}

// Monthly returns the account's daily results for a calendar month, with a
// running cumulative profit.
func (s *Service) Monthly(ctx context.Context, accountID int64, year, month int) (MonthlyReport, error) {
	if month < 1 || month > 12 {
		return MonthlyReport{}, fmt.Errorf("month must be between 1 and 12")
	}
	if year < 2000 || year > 2100 {
		return MonthlyReport{}, fmt.Errorf("year %d out of range", year)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, marketclock.KST)
	to := from.AddDate(0, 1, 0)

	list, err := s.store.ListDailyStrategiesByAccount(ctx, accountID, from, to)
	if err != nil {
		return MonthlyReport{}, err
	}

	report := MonthlyReport{Year: year, Month: month}
	var cumulative float64
	for _, ds := range list {
		cumulative += ds.TotalProfitAmount
		report.Days = append(report.Days, DayResult{
			Date:             ds.Timestamp.In(marketclock.KST).Format("2006-01-02"),
			BuyAmount:        ds.BuyAmount,
			SellAmount:       ds.SellAmount,
			ProfitAmount:     ds.TotalProfitAmount,
			ProfitRate:       ds.TotalProfitRate,
			CumulativeProfit: cumulative,
		})
		if ds.BuyAmount > 0 || ds.SellAmount > 0 {
			report.TradedDays++
		}
	}
	report.TotalProfit = cumulative
	return report, nil
}
