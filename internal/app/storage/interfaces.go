package storage

import (
	"context"
	"errors"
	"time"

	"github.com/stockpredict/server/internal/app/domain/account"
	"github.com/stockpredict/server/internal/app/domain/candle"
	"github.com/stockpredict/server/internal/app/domain/order"
	"github.com/stockpredict/server/internal/app/domain/prediction"
	"github.com/stockpredict/server/internal/app/domain/stock"
	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/domain/user"
)

// ErrNotFound is returned when a requested record does not exist. Store
// implementations wrap it with record details.
var ErrNotFound = errors.New("not found")

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, uid int64) (user.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// AccountStore persists brokerage account records. Deletion is soft: rows
// are flagged and scrubbed, never removed.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id int64) (account.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (account.Account, error)
	ListAccountsByUser(ctx context.Context, userUID int64) ([]account.Account, error)
}

// StrategyStore persists the strategy catalog and per-account subscriptions.
type StrategyStore interface {
	ListStrategyInfo(ctx context.Context) ([]strategy.Info, error)
	GetStrategyInfo(ctx context.Context, id int64) (strategy.Info, error)
	ListWeightTypes(ctx context.Context) ([]strategy.WeightType, error)

	CreateUserStrategy(ctx context.Context, us strategy.UserStrategy) (strategy.UserStrategy, error)
	UpdateUserStrategy(ctx context.Context, us strategy.UserStrategy) (strategy.UserStrategy, error)
	GetUserStrategy(ctx context.Context, id int64) (strategy.UserStrategy, error)
	ListUserStrategiesByAccount(ctx context.Context, accountID int64) ([]strategy.UserStrategy, error)
}

// DailyStrategyStore persists daily execution plans and their stocks.
type DailyStrategyStore interface {
	CreateDailyStrategy(ctx context.Context, ds strategy.DailyStrategy) (strategy.DailyStrategy, error)
	UpdateDailyStrategy(ctx context.Context, ds strategy.DailyStrategy) (strategy.DailyStrategy, error)
	GetDailyStrategy(ctx context.Context, id int64) (strategy.DailyStrategy, error)
	GetDailyStrategyByDate(ctx context.Context, userStrategyID int64, date time.Time) (strategy.DailyStrategy, error)
	ListDailyStrategies(ctx context.Context, userStrategyID int64, from, to time.Time) ([]strategy.DailyStrategy, error)
	ListDailyStrategiesByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]strategy.DailyStrategy, error)

	CreateDailyStrategyStock(ctx context.Context, st strategy.DailyStrategyStock) (strategy.DailyStrategyStock, error)
	UpdateDailyStrategyStock(ctx context.Context, st strategy.DailyStrategyStock) (strategy.DailyStrategyStock, error)
	GetDailyStrategyStock(ctx context.Context, id int64) (strategy.DailyStrategyStock, error)
	GetDailyStrategyStockByCode(ctx context.Context, dailyStrategyID int64, stockCode string) (strategy.DailyStrategyStock, error)
	ListDailyStrategyStocks(ctx context.Context, dailyStrategyID int64) ([]strategy.DailyStrategyStock, error)
}

// OrderStore persists broker orders and their executions.
type OrderStore interface {
	CreateOrder(ctx context.Context, ord order.Order) (order.Order, error)
	UpdateOrder(ctx context.Context, ord order.Order) (order.Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (order.Order, error)
	ListOrdersByStock(ctx context.Context, dailyStrategyStockID int64) ([]order.Order, error)

	CreateExecution(ctx context.Context, exec order.Execution) (order.Execution, error)
	ListExecutions(ctx context.Context, orderID int64) ([]order.Execution, error)
}

// CandleStore persists aggregated candles. Upserts are keyed by
// (stock, date, hour) and (stock, date, time, interval) respectively.
type CandleStore interface {
	UpsertHourCandle(ctx context.Context, c candle.HourCandle) (candle.HourCandle, error)
	ListHourCandles(ctx context.Context, stockCode string, date time.Time) ([]candle.HourCandle, error)
	UpsertMinuteCandle(ctx context.Context, c candle.MinuteCandle) (candle.MinuteCandle, error)
	ListMinuteCandles(ctx context.Context, stockCode string, date time.Time, interval int) ([]candle.MinuteCandle, error)
}

// PredictionStore persists model predictions.
type PredictionStore interface {
	CreatePrediction(ctx context.Context, p prediction.GapPrediction) (prediction.GapPrediction, error)
	ListPredictionsByDate(ctx context.Context, date time.Time) ([]prediction.GapPrediction, error)
	LatestPredictionDate(ctx context.Context) (time.Time, error)
}

// StockStore persists listing metadata and daily closes.
type StockStore interface {
	UpsertStock(ctx context.Context, md stock.Metadata) (stock.Metadata, error)
	GetStock(ctx context.Context, code string) (stock.Metadata, error)
	SearchStocks(ctx context.Context, query string) ([]stock.Metadata, error)

	UpsertDailyPrice(ctx context.Context, p stock.DailyPrice) (stock.DailyPrice, error)
	ListDailyPrices(ctx context.Context, stockCode string, from, to time.Time) ([]stock.DailyPrice, error)
}

// ModelRegistryStore persists trained model versions.
type ModelRegistryStore interface {
	CreateModelVersion(ctx context.Context, mv prediction.ModelVersion) (prediction.ModelVersion, error)
	ListModelVersions(ctx context.Context) ([]prediction.ModelVersion, error)
	GetModelVersion(ctx context.Context, version string) (prediction.ModelVersion, error)
	GetActiveModelVersion(ctx context.Context) (prediction.ModelVersion, error)
}
