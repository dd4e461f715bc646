package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/stockpredict/server/internal/app/domain/market"
	"github.com/stockpredict/server/internal/app/domain/order"
	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/metrics"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/marketclock"
)

// pendingResults buffers execution results that arrive before the
// "ordered" acknowledgement for the same order number. The engine and the
// broker feed race on this topic during fast fills.
type pendingResults struct {
	mu      sync.Mutex
	byOrder map[string][]market.OrderMessage
}

func newPendingResults() *pendingResults {
	return &pendingResults{byOrder: map[string][]market.OrderMessage{}}
}

func (p *pendingResults) add(msg market.OrderMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byOrder[msg.OrderNo] = append(p.byOrder[msg.OrderNo], msg)
}

func (p *pendingResults) drain(orderNo string) []market.OrderMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.byOrder[orderNo]
	delete(p.byOrder, orderNo)
	return msgs
}

// HandleOrderMessage dispatches an order topic message. Engine results
// carry an order number; anything else is a legacy buy/sell signal.
func (i *Ingestor) HandleOrderMessage(ctx context.Context, value []byte) error {
	var msg market.OrderMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("order message: %w", err)
	}

	if !msg.HasOrderNo() {
		metrics.RecordOrderEvent("legacy")
		return i.handleLegacySignal(ctx, msg)
	}
	metrics.RecordOrderEvent(msg.Status)
	if msg.Status == market.OrderStatusOrdered {
		return i.handleOrdered(ctx, msg)
	}
	return i.handleExecution(ctx, msg)
}

// handleOrdered records the placement acknowledgement, then replays any
// execution results that arrived before it.
func (i *Ingestor) handleOrdered(ctx context.Context, msg market.OrderMessage) error {
	ord, err := i.stores.Orders.GetOrderByNo(ctx, msg.OrderNo)
	if err == nil {
		// Duplicate acknowledgement. Refresh the mutable fields only.
		ord.Quantity = msg.Quantity.Int()
		ord.Price = msg.Price.Float()
		if _, err := i.stores.Orders.UpdateOrder(ctx, ord); err != nil {
			return fmt.Errorf("update order %s: %w", msg.OrderNo, err)
		}
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup order %s: %w", msg.OrderNo, err)
	}

	st, err := i.resolvePlanStock(ctx, msg.AccountNo, msg.StockCode)
	if err != nil {
		i.log.WithError(err).
			WithField("order_no", msg.OrderNo).
			WithField("stock_code", msg.StockCode).
			Warn("order for unknown plan stock skipped")
		return nil
	}

	ord, err = i.stores.Orders.CreateOrder(ctx, order.Order{
		DailyStrategyStockID: st.ID,
		OrderNo:              msg.OrderNo,
		Type:                 order.Type(msg.OrderType),
		Quantity:             msg.Quantity.Int(),
		Price:                msg.Price.Float(),
		Dvsn:                 msg.OrderDvsn,
		AccountNo:            msg.AccountNo,
		IsMock:               msg.IsMock,
		Status:               order.StatusOrdered,
		RemainingQuantity:    msg.Quantity.Int(),
		OrderedAt:            parseTimestamp(msg.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("create order %s: %w", msg.OrderNo, err)
	}
	i.log.WithField("order_no", ord.OrderNo).WithField("type", string(ord.Type)).Info("order recorded")

	for _, buffered := range i.pending.drain(msg.OrderNo) {
		if err := i.applyExecution(ctx, ord, buffered); err != nil {
			return err
		}
		ord, err = i.stores.Orders.GetOrderByNo(ctx, msg.OrderNo)
		if err != nil {
			return fmt.Errorf("reload order %s: %w", msg.OrderNo, err)
		}
	}
	return nil
}

// handleExecution applies a fill to its order, buffering the result when
// the order is not known yet.
func (i *Ingestor) handleExecution(ctx context.Context, msg market.OrderMessage) error {
	ord, err := i.stores.Orders.GetOrderByNo(ctx, msg.OrderNo)
	if errors.Is(err, storage.ErrNotFound) {
		i.pending.add(msg)
		i.log.WithField("order_no", msg.OrderNo).Info("execution buffered until order arrives")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup order %s: %w", msg.OrderNo, err)
	}
	return i.applyExecution(ctx, ord, msg)
}

func (i *Ingestor) applyExecution(ctx context.Context, ord order.Order, msg market.OrderMessage) error {
	qty := msg.ExecutedQuantity.Int()
	price := msg.ExecutedPrice.Float()
	if qty <= 0 {
		qty = msg.Quantity.Int()
		price = msg.Price.Float()
	}
	if qty <= 0 {
		i.log.WithField("order_no", ord.OrderNo).Warn("execution without quantity skipped")
		return nil
	}

	prevQty := ord.TotalExecutedQuantity
	newQty := prevQty + qty
	ord.TotalExecutedPrice = (ord.TotalExecutedPrice*float64(prevQty) + price*float64(qty)) / float64(newQty)
	ord.TotalExecutedQuantity = newQty
	ord.RemainingQuantity = ord.Quantity - newQty
	if ord.RemainingQuantity < 0 {
		ord.RemainingQuantity = 0
	}
	ord.IsFullyExecuted = msg.IsFullyExecuted || ord.RemainingQuantity == 0
	if ord.IsFullyExecuted {
		ord.RemainingQuantity = 0
		ord.Status = order.StatusExecuted
	} else {
		ord.Status = order.StatusPartiallyExecuted
	}

	_, err := i.stores.Orders.CreateExecution(ctx, order.Execution{
		OrderID:                    ord.ID,
		ExecutedQuantity:           qty,
		ExecutedPrice:              price,
		TotalExecutedQuantityAfter: ord.TotalExecutedQuantity,
		TotalExecutedPriceAfter:    ord.TotalExecutedPrice,
		RemainingQuantityAfter:     ord.RemainingQuantity,
		IsFullyExecutedAfter:       ord.IsFullyExecuted,
		ExecutedAt:                 parseTimestamp(msg.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("create execution for %s: %w", ord.OrderNo, err)
	}
	if _, err := i.stores.Orders.UpdateOrder(ctx, ord); err != nil {
		return fmt.Errorf("update order %s: %w", ord.OrderNo, err)
	}

	if ord.IsFullyExecuted {
		if err := i.rollUpFills(ctx, ord); err != nil {
			return err
		}
	}
	return nil
}

// rollUpFills writes a fully executed order back into its plan stock and,
// for sells, rolls realized profit into the daily strategy totals.
func (i *Ingestor) rollUpFills(ctx context.Context, ord order.Order) error {
	st, err := i.stores.Daily.GetDailyStrategyStock(ctx, ord.DailyStrategyStockID)
	if err != nil {
		return fmt.Errorf("plan stock for order %s: %w", ord.OrderNo, err)
	}

	avg := ord.TotalExecutedPrice
	filled := ord.TotalExecutedQuantity

	switch ord.Type {
	case order.TypeBuy:
		newQty := st.BuyQuantity + filled
		st.BuyPrice = (st.BuyPrice*float64(st.BuyQuantity) + avg*float64(filled)) / float64(newQty)
		st.BuyQuantity = newQty
	case order.TypeSell:
		newQty := st.SellQuantity + filled
		st.SellPrice = (st.SellPrice*float64(st.SellQuantity) + avg*float64(filled)) / float64(newQty)
		st.SellQuantity = newQty
		if st.BuyPrice > 0 {
			st.ProfitRate = (st.SellPrice - st.BuyPrice) / st.BuyPrice * 100
		}
	default:
		return fmt.Errorf("order %s has unknown type %q", ord.OrderNo, ord.Type)
	}

	if _, err := i.stores.Daily.UpdateDailyStrategyStock(ctx, st); err != nil {
		return fmt.Errorf("update plan stock: %w", err)
	}

	if ord.Type != order.TypeSell {
		return nil
	}

	ds, err := i.stores.Daily.GetDailyStrategy(ctx, st.DailyStrategyID)
	if err != nil {
		return fmt.Errorf("daily strategy for order %s: %w", ord.OrderNo, err)
	}
	proceeds := avg * float64(filled)
	ds.SellAmount += proceeds
	ds.TotalProfitAmount += (avg - st.BuyPrice) * float64(filled)
	if ds.BuyAmount > 0 {
		ds.TotalProfitRate = ds.TotalProfitAmount / ds.BuyAmount * 100
	}
	if _, err := i.stores.Daily.UpdateDailyStrategy(ctx, ds); err != nil {
		return fmt.Errorf("update daily strategy: %w", err)
	}

	i.log.WithField("order_no", ord.OrderNo).
		WithField("profit_amount", ds.TotalProfitAmount).
		Info("sell rolled up into daily strategy")
	return nil
}

// handleLegacySignal applies an order message without an order number:
// the old engine format that only reported the trade outcome. The plan
// stock is updated directly and the account balance adjusted by the
// trade amount.
func (i *Ingestor) handleLegacySignal(ctx context.Context, msg market.OrderMessage) error {
	qty := msg.Quantity.Int()
	price := msg.Price.Float()
	if msg.StockCode == "" || qty <= 0 {
		i.log.Warn("legacy order signal without stock or quantity skipped")
		return nil
	}

	acct, err := i.stores.Accounts.GetAccountByNumber(ctx, msg.AccountNo)
	if err != nil {
		i.log.WithError(err).WithField("account_no", msg.AccountNo).Warn("legacy order signal for unknown account skipped")
		return nil
	}

	st, err := i.resolvePlanStock(ctx, msg.AccountNo, msg.StockCode)
	if err != nil {
		i.log.WithError(err).WithField("stock_code", msg.StockCode).Warn("legacy order signal for unknown plan stock skipped")
		return nil
	}

	amount := price * float64(qty)
	switch order.Type(msg.OrderType) {
	case order.TypeBuy:
		st.BuyPrice = price
		st.BuyQuantity += qty
		acct.Balance -= amount
	case order.TypeSell:
		st.SellPrice = price
		st.SellQuantity += qty
		if st.BuyPrice > 0 {
			st.ProfitRate = (st.SellPrice - st.BuyPrice) / st.BuyPrice * 100
		}
		acct.Balance += amount
	default:
		return fmt.Errorf("legacy order signal with unknown type %q", msg.OrderType)
	}

	if _, err := i.stores.Daily.UpdateDailyStrategyStock(ctx, st); err != nil {
		return fmt.Errorf("update plan stock: %w", err)
	}
	if _, err := i.stores.Accounts.UpdateAccount(ctx, acct); err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	i.log.WithField("stock_code", msg.StockCode).WithField("type", msg.OrderType).Info("legacy order signal applied")
	return nil
}

// resolvePlanStock finds today's plan stock for the account and code by
// walking the account's subscriptions.
func (i *Ingestor) resolvePlanStock(ctx context.Context, accountNo, stockCode string) (strategy.DailyStrategyStock, error) {
	acct, err := i.stores.Accounts.GetAccountByNumber(ctx, accountNo)
	if err != nil {
		return strategy.DailyStrategyStock{}, fmt.Errorf("account %s: %w", accountNo, err)
	}
	subs, err := i.stores.Strategies.ListUserStrategiesByAccount(ctx, acct.ID)
	if err != nil {
		return strategy.DailyStrategyStock{}, err
	}
	today := marketclock.Today()
	for _, sub := range subs {
		if sub.IsDeleted {
			continue
		}
		ds, err := i.stores.Daily.GetDailyStrategyByDate(ctx, sub.ID, today)
		if err != nil {
			continue
		}
		st, err := i.stores.Daily.GetDailyStrategyStockByCode(ctx, ds.ID, stockCode)
		if err == nil {
			return st, nil
		}
	}
	return strategy.DailyStrategyStock{}, fmt.Errorf("no plan stock for %s on account %s today: %w", stockCode, accountNo, storage.ErrNotFound)
}
