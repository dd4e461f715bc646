package history

import (
	"context"
	"testing"
	"time"

	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/marketclock"
)

func seedDay(t *testing.T, store *memory.Store, usID int64, day time.Time, profit float64) {
	t.Helper()
	_, err := store.CreateDailyStrategy(context.Background(), strategy.DailyStrategy{
		UserStrategyID:    usID,
		Timestamp:         day,
		BuyAmount:         1000000,
		SellAmount:        1000000 + profit,
		TotalProfitAmount: profit,
		TotalProfitRate:   profit / 1000000 * 100,
	})
	if err != nil {
		t.Fatalf("seed daily strategy: %v", err)
	}
}

func TestMonthly(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	us, err := store.CreateUserStrategy(ctx, strategy.UserStrategy{AccountID: 1, StrategyID: 1})
	if err != nil {
		t.Fatalf("seed user strategy: %v", err)
	}

	seedDay(t, store, us.ID, time.Date(2025, time.March, 4, 9, 0, 0, 0, marketclock.KST), 50000)
	seedDay(t, store, us.ID, time.Date(2025, time.March, 5, 9, 0, 0, 0, marketclock.KST), -20000)
	// Outside the requested month.
	seedDay(t, store, us.ID, time.Date(2025, time.April, 1, 9, 0, 0, 0, marketclock.KST), 99999)

	report, err := svc.Monthly(ctx, 1, 2025, 3)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(report.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(report.Days))
	}
	if report.Days[0].Date != "2025-03-04" || report.Days[1].Date != "2025-03-05" {
		t.Fatalf("unexpected order: %+v", report.Days)
	}
	if report.Days[1].CumulativeProfit != 30000 {
		t.Fatalf("cumulative = %v, want 30000", report.Days[1].CumulativeProfit)
	}
	if report.TotalProfit != 30000 {
		t.Fatalf("total = %v, want 30000", report.TotalProfit)
	}
	if report.TradedDays != 2 {
		t.Fatalf("traded days = %d, want 2", report.TradedDays)
	}
}

func TestMonthlyOtherAccountExcluded(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	mine, _ := store.CreateUserStrategy(ctx, strategy.UserStrategy{AccountID: 1, StrategyID: 1})
	other, _ := store.CreateUserStrategy(ctx, strategy.UserStrategy{AccountID: 2, StrategyID: 1})

	seedDay(t, store, mine.ID, time.Date(2025, time.March, 4, 9, 0, 0, 0, marketclock.KST), 1000)
	seedDay(t, store, other.ID, time.Date(2025, time.March, 4, 9, 0, 0, 0, marketclock.KST), 5000)

	report, err := svc.Monthly(ctx, 1, 2025, 3)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if report.TotalProfit != 1000 {
		t.Fatalf("total = %v, want 1000", report.TotalProfit)
	}
}

func TestMonthlyValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	if _, err := svc.Monthly(context.Background(), 1, 2025, 13); err == nil {
		t.Fatalf("month 13 should fail")
	}
	if _, err := svc.Monthly(context.Background(), 1, 1, 5); err == nil {
		t.Fatalf("absurd year should fail")
	}
}
