package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stockpredict/server/internal/app/domain/account"
	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/marketclock"
)

type capturedMessage struct {
	topic   string
	key     string
	payload any
}

type fakePublisher struct {
	messages []capturedMessage
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, payload any) error {
	f.messages = append(f.messages, capturedMessage{topic: topic, key: key, payload: payload})
	return nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, string, any) error {
	return fmt.Errorf("broker unreachable")
}

func setup(t *testing.T) (*Service, *memory.Store, *fakePublisher, account.Account) {
	t.Helper()
	store := memory.New()
	pub := &fakePublisher{}
	svc := New(store, store, store, store, pub, "manual-sell-signal", nil)

	ctx := context.Background()
	acct, err := store.CreateAccount(ctx, account.Account{UserUID: 7, AccountNumber: "1234567801", Type: account.TypeReal})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return svc, store, pub, acct
}

func seedHolding(t *testing.T, store *memory.Store, accountID int64, stockCode string, holding int64) {
	t.Helper()
	ctx := context.Background()
	us, err := store.CreateUserStrategy(ctx, strategy.UserStrategy{AccountID: accountID, StrategyID: 1})
	if err != nil {
		t.Fatalf("seed user strategy: %v", err)
	}
	ds, err := store.CreateDailyStrategy(ctx, strategy.DailyStrategy{UserStrategyID: us.ID, Timestamp: marketclock.Today()})
	if err != nil {
		t.Fatalf("seed daily strategy: %v", err)
	}
	_, err = store.CreateDailyStrategyStock(ctx, strategy.DailyStrategyStock{
		DailyStrategyID: ds.ID,
		StockCode:       stockCode,
		BuyQuantity:     holding,
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func TestManualSellWholeHolding(t *testing.T) {
	svc, store, pub, acct := setup(t)
	seedHolding(t, store, acct.ID, "005930", 10)

	signal, err := svc.ManualSell(context.Background(), 7, acct.ID, "005930", 0, OrderMarket, 0)
	if err != nil {
		t.Fatalf("manual sell: %v", err)
	}
	if signal.Quantity != 10 {
		t.Fatalf("quantity = %d, want full holding 10", signal.Quantity)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if pub.messages[0].topic != "manual-sell-signal" || pub.messages[0].key != "1234567801" {
		t.Fatalf("unexpected message %+v", pub.messages[0])
	}
}

func TestManualSellPartial(t *testing.T) {
	svc, store, _, acct := setup(t)
	seedHolding(t, store, acct.ID, "005930", 10)

	signal, err := svc.ManualSell(context.Background(), 7, acct.ID, "005930", 4, OrderMarket, 0)
	if err != nil {
		t.Fatalf("manual sell: %v", err)
	}
	if signal.Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", signal.Quantity)
	}
}

func TestManualSellClampsOversell(t *testing.T) {
	svc, store, _, acct := setup(t)
	seedHolding(t, store, acct.ID, "005930", 10)

	signal, err := svc.ManualSell(context.Background(), 7, acct.ID, "005930", 99, OrderMarket, 0)
	if err != nil {
		t.Fatalf("manual sell: %v", err)
	}
	if signal.Quantity != 10 {
		t.Fatalf("quantity = %d, want clamped 10", signal.Quantity)
	}
}

func TestManualSellNoHolding(t *testing.T) {
	svc, _, pub, acct := setup(t)

	if _, err := svc.ManualSell(context.Background(), 7, acct.ID, "005930", 1, OrderMarket, 0); err == nil {
		t.Fatalf("sell without holding should fail")
	}
	if len(pub.messages) != 0 {
		t.Fatalf("no message should be published")
	}
}

func TestManualSellCrossUser(t *testing.T) {
	svc, store, _, acct := setup(t)
	seedHolding(t, store, acct.ID, "005930", 10)

	if _, err := svc.ManualSell(context.Background(), 8, acct.ID, "005930", 1, OrderMarket, 0); err == nil {
		t.Fatalf("cross-user sell should fail")
	}
}

func TestManualSellLimitOrder(t *testing.T) {
	svc, store, _, acct := setup(t)
	seedHolding(t, store, acct.ID, "005930", 10)

	// A limit order without a price is rejected.
	if _, err := svc.ManualSell(context.Background(), 7, acct.ID, "005930", 5, OrderLimit, 0); err == nil {
		t.Fatalf("limit sell without price should fail")
	}

	signal, err := svc.ManualSell(context.Background(), 7, acct.ID, "005930", 5, OrderLimit, 71000)
	if err != nil {
		t.Fatalf("limit sell: %v", err)
	}
	if signal.OrderType != OrderLimit || signal.Price != 71000 {
		t.Fatalf("unexpected signal %+v", signal)
	}
}

func TestManualSellPublishFailure(t *testing.T) {
	store := memory.New()
	pub := &failingPublisher{}
	svc := New(store, store, store, store, pub, "manual-sell-signal", nil)

	ctx := context.Background()
	acct, err := store.CreateAccount(ctx, account.Account{UserUID: 7, AccountNumber: "1234567801", Type: account.TypeReal})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	seedHolding(t, store, acct.ID, "005930", 10)

	_, err = svc.ManualSell(ctx, 7, acct.ID, "005930", 1, OrderMarket, 0)
	if !errors.Is(err, ErrSignalNotSent) {
		t.Fatalf("err = %v, want ErrSignalNotSent", err)
	}
}

func TestManualSellWithoutPublisher(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil, "manual-sell-signal", nil)

	if _, err := svc.ManualSell(context.Background(), 7, 1, "005930", 1, OrderMarket, 0); err == nil {
		t.Fatalf("manual sell without producer should fail")
	}
}
