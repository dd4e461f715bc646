package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/stockpredict/server/internal/app/domain/market"
	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/services/marketdata"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/marketclock"
)

func newService(t *testing.T) (*Service, *memory.Store, *marketdata.TickCache) {
	t.Helper()
	store := memory.New()
	store.SeedCatalog(
		[]strategy.Info{{ID: 1, Name: "gap_up"}, {ID: 2, Name: "mean_reversion"}},
		[]strategy.WeightType{{ID: 1, Name: "equal"}},
	)
	ticks := marketdata.NewTickCache()
	return New(store, store, ticks, nil), store, ticks
}

func create(t *testing.T, svc *Service, accountID, strategyID int64) strategy.UserStrategy {
	t.Helper()
	us, err := svc.Create(context.Background(), CreateRequest{
		AccountID:        accountID,
		StrategyID:       strategyID,
		WeightTypeID:     1,
		InvestmentWeight: 50,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return us
}

func TestCreateStartsInactive(t *testing.T) {
	svc, _, _ := newService(t)
	us := create(t, svc, 1, 1)
	if us.Status != strategy.StatusInactive {
		t.Fatalf("status = %s, want inactive", us.Status)
	}
}

func TestCreateUnknownStrategy(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), CreateRequest{AccountID: 1, StrategyID: 99, WeightTypeID: 1})
	if err == nil {
		t.Fatalf("unknown strategy should fail")
	}
}

func TestCreateDuplicateSubscription(t *testing.T) {
	svc, _, _ := newService(t)
	create(t, svc, 1, 1)
	_, err := svc.Create(context.Background(), CreateRequest{AccountID: 1, StrategyID: 1, WeightTypeID: 1})
	if err == nil {
		t.Fatalf("duplicate subscription should fail")
	}
}

func TestActivateDeactivatesSiblings(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	first := create(t, svc, 1, 1)
	second := create(t, svc, 1, 2)

	active := strategy.StatusActive
	if _, err := svc.Update(ctx, 1, first.ID, UpdateRequest{Status: &active}); err != nil {
		t.Fatalf("activate first: %v", err)
	}
	if _, err := svc.Update(ctx, 1, second.ID, UpdateRequest{Status: &active}); err != nil {
		t.Fatalf("activate second: %v", err)
	}

	got, err := store.GetUserStrategy(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if got.Status != strategy.StatusInactive {
		t.Fatalf("first strategy should be deactivated, got %s", got.Status)
	}
	got, err = store.GetUserStrategy(ctx, second.ID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if got.Status != strategy.StatusActive {
		t.Fatalf("second strategy should be active, got %s", got.Status)
	}
}

func TestUpdateCrossAccount(t *testing.T) {
	svc, _, _ := newService(t)
	us := create(t, svc, 1, 1)

	active := strategy.StatusActive
	if _, err := svc.Update(context.Background(), 2, us.ID, UpdateRequest{Status: &active}); err == nil {
		t.Fatalf("cross-account update should fail")
	}
}

func TestDeleteHidesFromList(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	us := create(t, svc, 1, 1)

	if err := svc.Delete(ctx, 1, us.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted subscription still listed: %+v", list)
	}
}

func seedDailyPlan(t *testing.T, store *memory.Store, userStrategyID int64, st strategy.DailyStrategyStock) strategy.DailyStrategyStock {
	t.Helper()
	ctx := context.Background()
	ds, err := store.CreateDailyStrategy(ctx, strategy.DailyStrategy{UserStrategyID: userStrategyID, Timestamp: marketclock.Today()})
	if err != nil {
		t.Fatalf("seed daily strategy: %v", err)
	}
	st.DailyStrategyID = ds.ID
	st, err = store.CreateDailyStrategyStock(ctx, st)
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return st
}

func TestPositions(t *testing.T) {
	svc, store, ticks := newService(t)
	ctx := context.Background()
	us := create(t, svc, 1, 1)

	seedDailyPlan(t, store, us.ID, strategy.DailyStrategyStock{
		StockCode:       "005930",
		TargetSellPrice: 72000,
		StopLossPrice:   68000,
		BuyPrice:        70000,
		BuyQuantity:     10,
	})

	// Pin the cache clock to a mid-session moment so ticks stay fresh.
	now := time.Date(2025, time.March, 5, 10, 0, 0, 0, marketclock.KST)
	ticks.SetClock(func() time.Time { return now })

	cases := []struct {
		name  string
		price float64
		want  string
	}{
		{"holding between bounds", 70500, PositionHolding},
		{"target reached", 72500, PositionTargetReached},
		{"stop loss", 67500, PositionStopLoss},
	}
	for _, tc := range cases {
		ticks.Add(market.PriceTick{StockCode: "005930", CurrentPrice: market.Number(tc.price)})

		positions, err := svc.Positions(ctx, 1, marketclock.Today())
		if err != nil {
			t.Fatalf("%s: positions: %v", tc.name, err)
		}
		if len(positions) != 1 {
			t.Fatalf("%s: positions = %d, want 1", tc.name, len(positions))
		}
		if positions[0].Status != tc.want {
			t.Fatalf("%s: status = %s, want %s", tc.name, positions[0].Status, tc.want)
		}
	}
}

func TestPositionsNotPurchasedAndSold(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	us := create(t, svc, 1, 1)

	seedDailyPlan(t, store, us.ID, strategy.DailyStrategyStock{StockCode: "005930"})
	seedDailyPlan(t, store, us.ID, strategy.DailyStrategyStock{
		StockCode:    "000660",
		BuyQuantity:  10,
		SellQuantity: 10,
		BuyPrice:     100000,
		SellPrice:    101000,
		ProfitRate:   1.0,
	})

	positions, err := svc.Positions(ctx, 1, marketclock.Today())
	if err != nil {
		t.Fatalf("positions: %v", err)
	}

	byCode := make(map[string]Position)
	for _, p := range positions {
		byCode[p.Stock.StockCode] = p
	}
	if byCode["005930"].Status != PositionNotPurchased {
		t.Fatalf("005930 status = %s, want not_purchased", byCode["005930"].Status)
	}
	if byCode["000660"].Status != PositionSold {
		t.Fatalf("000660 status = %s, want sold", byCode["000660"].Status)
	}
	if byCode["000660"].ProfitRate != 1.0 {
		t.Fatalf("sold profit rate = %v, want realized 1.0", byCode["000660"].ProfitRate)
	}
}
