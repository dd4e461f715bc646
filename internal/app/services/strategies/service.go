// Package strategies manages per-account strategy subscriptions and the
// daily execution plans built from them.
package strategies

import (
	"context"
	"fmt"
	"time"

	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/services/marketdata"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/pkg/logger"
)

// Position statuses reported by the intraday position view.
const (
	PositionNotPurchased  = "not_purchased"
	PositionHolding       = "holding"
	PositionTargetReached = "target_reached"
	PositionStopLoss      = "stop_loss"
	PositionSold          = "sold"
)

// Service manages strategy subscriptions.
type Service struct {
	store      storage.StrategyStore
	dailyStore storage.DailyStrategyStore
	ticks      *marketdata.TickCache
	log        *logger.Logger
}

// New constructs a strategies service.
func New(store storage.StrategyStore, dailyStore storage.DailyStrategyStore, ticks *marketdata.TickCache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("strategies")
	}
	return &Service{store: store, dailyStore: dailyStore, ticks: ticks, log: log}
}

// Catalog returns the available strategies and weighting schemes.
func (s *Service) Catalog(ctx context.Context) ([]strategy.Info, []strategy.WeightType, error) {
	info, err := s.store.ListStrategyInfo(ctx)
	if err != nil {
		return nil, nil, err
	}
	weights, err := s.store.ListWeightTypes(ctx)
	if err != nil {
		return nil, nil, err
	}
	return info, weights, nil
}

// CreateRequest carries the settings for a new subscription.
type CreateRequest struct {
	AccountID        int64
	StrategyID       int64
	WeightTypeID     int64
	InvestmentWeight float64
	LossCutRatio     float64
	TakeProfitRatio  float64
	IsAuto           bool
}

// Create subscribes an account to a strategy. New subscriptions start
// inactive.
func (s *Service) Create(ctx context.Context, req CreateRequest) (strategy.UserStrategy, error) {
	if req.AccountID == 0 {
		return strategy.UserStrategy{}, fmt.Errorf("account_id is required")
	}
	if req.InvestmentWeight < 0 || req.InvestmentWeight > 100 {
		return strategy.UserStrategy{}, fmt.Errorf("investment_weight must be between 0 and 100")
	}
	if _, err := s.store.GetStrategyInfo(ctx, req.StrategyID); err != nil {
		return strategy.UserStrategy{}, fmt.Errorf("unknown strategy %d: %w", req.StrategyID, err)
	}

	existing, err := s.store.ListUserStrategiesByAccount(ctx, req.AccountID)
	if err != nil {
		return strategy.UserStrategy{}, err
	}
	for _, us := range existing {
		if us.StrategyID == req.StrategyID {
			return strategy.UserStrategy{}, fmt.Errorf("strategy %d already subscribed on this account", req.StrategyID)
		}
	}

	us := strategy.UserStrategy{
		AccountID:        req.AccountID,
		StrategyID:       req.StrategyID,
		WeightTypeID:     req.WeightTypeID,
		InvestmentWeight: req.InvestmentWeight,
		LossCutRatio:     req.LossCutRatio,
		TakeProfitRatio:  req.TakeProfitRatio,
		IsAuto:           req.IsAuto,
		Status:           strategy.StatusInactive,
	}
	us, err = s.store.CreateUserStrategy(ctx, us)
	if err != nil {
		return strategy.UserStrategy{}, err
	}

	s.log.WithField("account_id", req.AccountID).WithField("user_strategy_id", us.ID).Info("strategy subscribed")
	return us, nil
}

// UpdateRequest carries optional settings changes; nil fields are left
// untouched.
type UpdateRequest struct {
	WeightTypeID     *int64
	InvestmentWeight *float64
	LossCutRatio     *float64
	TakeProfitRatio  *float64
	IsAuto           *bool
	Status           *strategy.Status
}

// Update patches a subscription. Activating a subscription deactivates
// every other subscription on the same account.
func (s *Service) Update(ctx context.Context, accountID, userStrategyID int64, req UpdateRequest) (strategy.UserStrategy, error) {
	us, err := s.getOwned(ctx, accountID, userStrategyID)
	if err != nil {
		return strategy.UserStrategy{}, err
	}

	if req.WeightTypeID != nil {
		us.WeightTypeID = *req.WeightTypeID
	}
	if req.InvestmentWeight != nil {
		if *req.InvestmentWeight < 0 || *req.InvestmentWeight > 100 {
			return strategy.UserStrategy{}, fmt.Errorf("investment_weight must be between 0 and 100")
		}
		us.InvestmentWeight = *req.InvestmentWeight
	}
	if req.LossCutRatio != nil {
		us.LossCutRatio = *req.LossCutRatio
	}
	if req.TakeProfitRatio != nil {
		us.TakeProfitRatio = *req.TakeProfitRatio
	}
	if req.IsAuto != nil {
		us.IsAuto = *req.IsAuto
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return strategy.UserStrategy{}, fmt.Errorf("invalid status %q", *req.Status)
		}
		if *req.Status == strategy.StatusActive && us.Status != strategy.StatusActive {
			if err := s.deactivateSiblings(ctx, accountID, userStrategyID); err != nil {
				return strategy.UserStrategy{}, err
			}
		}
		us.Status = *req.Status
	}

	return s.store.UpdateUserStrategy(ctx, us)
}

// Delete soft-deletes a subscription.
func (s *Service) Delete(ctx context.Context, accountID, userStrategyID int64) error {
	us, err := s.getOwned(ctx, accountID, userStrategyID)
	if err != nil {
		return err
	}
	us.IsDeleted = true
	us.Status = strategy.StatusInactive
	if _, err := s.store.UpdateUserStrategy(ctx, us); err != nil {
		return err
	}
	s.log.WithField("user_strategy_id", userStrategyID).Info("strategy unsubscribed")
	return nil
}

// List returns the account's subscriptions.
func (s *Service) List(ctx context.Context, accountID int64) ([]strategy.UserStrategy, error) {
	return s.store.ListUserStrategiesByAccount(ctx, accountID)
}

func (s *Service) getOwned(ctx context.Context, accountID, userStrategyID int64) (strategy.UserStrategy, error) {
	us, err := s.store.GetUserStrategy(ctx, userStrategyID)
	if err != nil {
		return strategy.UserStrategy{}, err
	}
	if us.AccountID != accountID || us.IsDeleted {
		return strategy.UserStrategy{}, fmt.Errorf("user strategy %d: %w", userStrategyID, storage.ErrNotFound)
	}
	return us, nil
}

func (s *Service) deactivateSiblings(ctx context.Context, accountID, keepID int64) error {
	siblings, err := s.store.ListUserStrategiesByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		if sib.ID == keepID || sib.Status != strategy.StatusActive {
			continue
		}
		sib.Status = strategy.StatusInactive
		if _, err := s.store.UpdateUserStrategy(ctx, sib); err != nil {
			return err
		}
	}
	return nil
}

// Position is the intraday state of one planned stock.
type Position struct {
	Stock        strategy.DailyStrategyStock `json:"stock"`
	Status       string                      `json:"status"`
	CurrentPrice float64                     `json:"current_price"`
	ProfitRate   float64                     `json:"profit_rate"`
}

// Positions reports the per-stock state of the account's daily plans for a
// date. Live prices come from the tick cache when available.
func (s *Service) Positions(ctx context.Context, accountID int64, date time.Time) ([]Position, error) {
	subs, err := s.store.ListUserStrategiesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var result []Position
	for _, us := range subs {
		ds, err := s.dailyStore.GetDailyStrategyByDate(ctx, us.ID, date)
		if err != nil {
			continue
		}
		stocks, err := s.dailyStore.ListDailyStrategyStocks(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		for _, st := range stocks {
			result = append(result, s.position(st))
		}
	}
	return result, nil
}

func (s *Service) position(st strategy.DailyStrategyStock) Position {
	pos := Position{Stock: st, ProfitRate: st.ProfitRate}

	if s.ticks != nil {
		if tick, ok := s.ticks.Latest(st.StockCode); ok {
			pos.CurrentPrice = tick.CurrentPrice.Float()
		}
	}

	switch {
	case st.BuyQuantity == 0:
		pos.Status = PositionNotPurchased
	case st.HoldingQuantity() <= 0:
		pos.Status = PositionSold
	case pos.CurrentPrice > 0 && st.TargetSellPrice > 0 && pos.CurrentPrice >= st.TargetSellPrice:
		pos.Status = PositionTargetReached
	case pos.CurrentPrice > 0 && st.StopLossPrice > 0 && pos.CurrentPrice <= st.StopLossPrice:
		pos.Status = PositionStopLoss
	default:
		pos.Status = PositionHolding
	}

	if pos.Status == PositionHolding || pos.Status == PositionTargetReached || pos.Status == PositionStopLoss {
		if pos.CurrentPrice > 0 && st.BuyPrice > 0 {
			pos.ProfitRate = (pos.CurrentPrice - st.BuyPrice) / st.BuyPrice * 100
		}
	}
	return pos
}

// DailyStrategies returns the account's daily plans in [from, to), each
// with its stocks.
type DailyStrategyDetail struct {
	strategy.DailyStrategy
	Stocks []strategy.DailyStrategyStock `json:"stocks"`
}

func (s *Service) DailyStrategies(ctx context.Context, accountID int64, from, to time.Time) ([]DailyStrategyDetail, error) {
	list, err := s.dailyStore.ListDailyStrategiesByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}

	result := make([]DailyStrategyDetail, 0, len(list))
	for _, ds := range list {
		stocks, err := s.dailyStore.ListDailyStrategyStocks(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, DailyStrategyDetail{DailyStrategy: ds, Stocks: stocks})
	}
	return result, nil
}
