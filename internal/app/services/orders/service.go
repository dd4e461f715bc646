// Package orders exposes order history and the manual sell signal that is
// relayed to the trading engine.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockpredict/server/internal/app/domain/order"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/marketclock"
	"github.com/stockpredict/server/pkg/logger"
)

// Publisher sends messages to the trading engine.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Service serves orders and relays manual sell requests.
type Service struct {
	store      storage.OrderStore
	accounts   storage.AccountStore
	strategies storage.StrategyStore
	daily      storage.DailyStrategyStore
	publisher  Publisher
	topic      string
	log        *logger.Logger
}

// New constructs an orders service. The publisher may be nil, in which
// case manual sells are rejected.
func New(store storage.OrderStore, accounts storage.AccountStore, strategies storage.StrategyStore,
	daily storage.DailyStrategyStore, publisher Publisher, topic string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{
		store:      store,
		accounts:   accounts,
		strategies: strategies,
		daily:      daily,
		publisher:  publisher,
		topic:      topic,
		log:        log,
	}
}

// OrderDetail is an order with its executions.
type OrderDetail struct {
	order.Order
	Executions []order.Execution `json:"executions"`
}

// ListForStock returns the orders placed for one daily strategy stock.
func (s *Service) ListForStock(ctx context.Context, dailyStrategyStockID int64) ([]OrderDetail, error) {
	list, err := s.store.ListOrdersByStock(ctx, dailyStrategyStockID)
	if err != nil {
		return nil, err
	}

	result := make([]OrderDetail, 0, len(list))
	for _, ord := range list {
		execs, err := s.store.ListExecutions(ctx, ord.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, OrderDetail{Order: ord, Executions: execs})
	}
	return result, nil
}

// Order placement methods for manual sells.
const (
	OrderMarket = "MARKET"
	OrderLimit  = "LIMIT"
)

// ErrSignalNotSent marks a sell that failed at the message broker rather
// than in validation.
var ErrSignalNotSent = errors.New("sell signal could not be published")

// ManualSellSignal is the message published when a user asks to liquidate
// a position immediately.
type ManualSellSignal struct {
	AccountNo string  `json:"account_no"`
	StockCode string  `json:"stock_code"`
	Quantity  int64   `json:"quantity"`
	OrderType string  `json:"order_type"`
	Price     float64 `json:"price,omitempty"`
	IsMock    bool    `json:"is_mock"`
	Timestamp string  `json:"timestamp"`
}

// ManualSell publishes a sell signal for the user's holding of a stock in
// today's plan. Quantity zero means the whole holding; limit orders must
// carry a price.
func (s *Service) ManualSell(ctx context.Context, userUID, accountID int64, stockCode string, quantity int64, orderType string, price float64) (ManualSellSignal, error) {
	if s.publisher == nil {
		return ManualSellSignal{}, fmt.Errorf("manual sell is not available: signal producer not configured")
	}
	if stockCode == "" {
		return ManualSellSignal{}, fmt.Errorf("stock_code is required")
	}
	if orderType == "" {
		orderType = OrderMarket
	}
	if orderType != OrderMarket && orderType != OrderLimit {
		return ManualSellSignal{}, fmt.Errorf("order_type must be %s or %s", OrderMarket, OrderLimit)
	}
	if orderType == OrderLimit && price <= 0 {
		return ManualSellSignal{}, fmt.Errorf("price is required for %s orders", OrderLimit)
	}
	if orderType == OrderMarket {
		price = 0
	}

	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return ManualSellSignal{}, err
	}
	if acct.UserUID != userUID || acct.IsDeleted {
		return ManualSellSignal{}, fmt.Errorf("account %d: %w", accountID, storage.ErrNotFound)
	}

	holding, err := s.todayHolding(ctx, accountID, stockCode)
	if err != nil {
		return ManualSellSignal{}, err
	}
	if holding <= 0 {
		return ManualSellSignal{}, fmt.Errorf("no holding of %s to sell", stockCode)
	}
	if quantity <= 0 || quantity > holding {
		quantity = holding
	}

	signal := ManualSellSignal{
		AccountNo: acct.AccountNumber,
		StockCode: stockCode,
		Quantity:  quantity,
		OrderType: orderType,
		Price:     price,
		IsMock:    acct.Type == "mock",
		Timestamp: marketclock.Now().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, s.topic, acct.AccountNumber, signal); err != nil {
		return ManualSellSignal{}, fmt.Errorf("%w: %v", ErrSignalNotSent, err)
	}

	s.log.WithField("account_id", accountID).WithField("stock_code", stockCode).
		WithField("quantity", quantity).Info("manual sell signal published")
	return signal, nil
}

// todayHolding sums the held quantity of a stock across the account's
// plans for today.
func (s *Service) todayHolding(ctx context.Context, accountID int64, stockCode string) (int64, error) {
	subs, err := s.strategies.ListUserStrategiesByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	var holding int64
	for _, us := range subs {
		ds, err := s.daily.GetDailyStrategyByDate(ctx, us.ID, marketclock.Today())
		if err != nil {
			continue
		}
		st, err := s.daily.GetDailyStrategyStockByCode(ctx, ds.ID, stockCode)
		if err != nil {
			continue
		}
		holding += st.HoldingQuantity()
	}
	return holding, nil
}
