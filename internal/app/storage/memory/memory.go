// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stockpredict/server/internal/app/domain/account"
	"github.com/stockpredict/server/internal/app/domain/candle"
	"github.com/stockpredict/server/internal/app/domain/order"
	"github.com/stockpredict/server/internal/app/domain/prediction"
	"github.com/stockpredict/server/internal/app/domain/stock"
	"github.com/stockpredict/server/internal/app/domain/strategy"
	"github.com/stockpredict/server/internal/app/domain/user"
	"github.com/stockpredict/server/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users           map[int64]user.User
	usersByNickname map[string]int64

	accounts map[int64]account.Account

	strategyInfo   []strategy.Info
	weightTypes    []strategy.WeightType
	userStrategies map[int64]strategy.UserStrategy

	dailyStrategies     map[int64]strategy.DailyStrategy
	dailyStrategyStocks map[int64]strategy.DailyStrategyStock

	orders     map[int64]order.Order
	ordersByNo map[string]int64
	executions map[int64][]order.Execution
	nextExecID int64

	hourCandles   map[string]candle.HourCandle
	minuteCandles map[string]candle.MinuteCandle

	predictions   map[int64]prediction.GapPrediction
	modelVersions map[string]prediction.ModelVersion

	stocks      map[string]stock.Metadata
	dailyPrices map[string]stock.DailyPrice
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.AccountStore = (*Store)(nil)
var _ storage.StrategyStore = (*Store)(nil)
var _ storage.DailyStrategyStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.CandleStore = (*Store)(nil)
var _ storage.PredictionStore = (*Store)(nil)
var _ storage.ModelRegistryStore = (*Store)(nil)
var _ storage.StockStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:              1,
		nextExecID:          1,
		users:               make(map[int64]user.User),
		usersByNickname:     make(map[string]int64),
		accounts:            make(map[int64]account.Account),
		userStrategies:      make(map[int64]strategy.UserStrategy),
		dailyStrategies:     make(map[int64]strategy.DailyStrategy),
		dailyStrategyStocks: make(map[int64]strategy.DailyStrategyStock),
		orders:              make(map[int64]order.Order),
		ordersByNo:          make(map[string]int64),
		executions:          make(map[int64][]order.Execution),
		hourCandles:         make(map[string]candle.HourCandle),
		minuteCandles:       make(map[string]candle.MinuteCandle),
		predictions:         make(map[int64]prediction.GapPrediction),
		modelVersions:       make(map[string]prediction.ModelVersion),
		stocks:              make(map[string]stock.Metadata),
		dailyPrices:         make(map[string]stock.DailyPrice),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SeedCatalog installs strategy catalog entries. It is used at startup and
// in tests.
func (s *Store) SeedCatalog(info []strategy.Info, weights []strategy.WeightType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategyInfo = append([]strategy.Info(nil), info...)
	s.weightTypes = append([]strategy.WeightType(nil), weights...)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByNickname[u.Nickname]; exists {
		return user.User{}, fmt.Errorf("user %q already exists", u.Nickname)
	}
	if u.UID == 0 {
		u.UID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.UID] = u
	s.usersByNickname[u.Nickname] = u.UID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.UID]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", u.UID, storage.ErrNotFound)
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	if original.Nickname != u.Nickname {
		delete(s.usersByNickname, original.Nickname)
		s.usersByNickname[u.Nickname] = u.UID
	}
	s.users[u.UID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, uid int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", uid, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByNickname(_ context.Context, nickname string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uid, ok := s.usersByNickname[nickname]
	if !ok {
		return user.User{}, fmt.Errorf("user %q: %w", nickname, storage.ErrNotFound)
	}
	return s.users[uid], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UID < result[j].UID })
	return result, nil
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if !existing.IsDeleted && existing.AccountNumber == acct.AccountNumber {
			return account.Account{}, fmt.Errorf("account %s already registered", acct.AccountNumber)
		}
	}
	if acct.ID == 0 {
		acct.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now
	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.accounts[acct.ID]
	if !ok {
		return account.Account{}, fmt.Errorf("account %d: %w", acct.ID, storage.ErrNotFound)
	}
	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %d: %w", id, storage.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) GetAccountByNumber(_ context.Context, accountNumber string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if !acct.IsDeleted && acct.AccountNumber == accountNumber {
			return acct, nil
		}
	}
	return account.Account{}, fmt.Errorf("account %s: %w", accountNumber, storage.ErrNotFound)
}

func (s *Store) ListAccountsByUser(_ context.Context, userUID int64) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []account.Account
	for _, acct := range s.accounts {
		if acct.UserUID == userUID && !acct.IsDeleted {
			result = append(result, acct)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// StrategyStore implementation ------------------------------------------------

func (s *Store) ListStrategyInfo(_ context.Context) ([]strategy.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]strategy.Info(nil), s.strategyInfo...), nil
}

func (s *Store) GetStrategyInfo(_ context.Context, id int64) (strategy.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, info := range s.strategyInfo {
		if info.ID == id {
			return info, nil
		}
	}
	return strategy.Info{}, fmt.Errorf("strategy %d: %w", id, storage.ErrNotFound)
}

func (s *Store) ListWeightTypes(_ context.Context) ([]strategy.WeightType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]strategy.WeightType(nil), s.weightTypes...), nil
}

func (s *Store) CreateUserStrategy(_ context.Context, us strategy.UserStrategy) (strategy.UserStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if us.ID == 0 {
		us.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	us.CreatedAt = now
	us.UpdatedAt = now
	s.userStrategies[us.ID] = us
	return us, nil
}

func (s *Store) UpdateUserStrategy(_ context.Context, us strategy.UserStrategy) (strategy.UserStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.userStrategies[us.ID]
	if !ok {
		return strategy.UserStrategy{}, fmt.Errorf("user strategy %d: %w", us.ID, storage.ErrNotFound)
	}
	us.CreatedAt = original.CreatedAt
	us.UpdatedAt = time.Now().UTC()
	s.userStrategies[us.ID] = us
	return us, nil
}

func (s *Store) GetUserStrategy(_ context.Context, id int64) (strategy.UserStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	us, ok := s.userStrategies[id]
	if !ok {
		return strategy.UserStrategy{}, fmt.Errorf("user strategy %d: %w", id, storage.ErrNotFound)
	}
	return us, nil
}

func (s *Store) ListUserStrategiesByAccount(_ context.Context, accountID int64) ([]strategy.UserStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []strategy.UserStrategy
	for _, us := range s.userStrategies {
		if us.AccountID == accountID && !us.IsDeleted {
			result = append(result, us)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DailyStrategyStore implementation -------------------------------------------

func (s *Store) CreateDailyStrategy(_ context.Context, ds strategy.DailyStrategy) (strategy.DailyStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds.ID == 0 {
		ds.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	s.dailyStrategies[ds.ID] = ds
	return ds, nil
}

func (s *Store) UpdateDailyStrategy(_ context.Context, ds strategy.DailyStrategy) (strategy.DailyStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.dailyStrategies[ds.ID]
	if !ok {
		return strategy.DailyStrategy{}, fmt.Errorf("daily strategy %d: %w", ds.ID, storage.ErrNotFound)
	}
	ds.CreatedAt = original.CreatedAt
	ds.UpdatedAt = time.Now().UTC()
	s.dailyStrategies[ds.ID] = ds
	return ds, nil
}

func (s *Store) GetDailyStrategy(_ context.Context, id int64) (strategy.DailyStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.dailyStrategies[id]
	if !ok {
		return strategy.DailyStrategy{}, fmt.Errorf("daily strategy %d: %w", id, storage.ErrNotFound)
	}
	return ds, nil
}

func (s *Store) GetDailyStrategyByDate(_ context.Context, userStrategyID int64, date time.Time) (strategy.DailyStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ds := range s.dailyStrategies {
		if ds.UserStrategyID == userStrategyID && sameDay(ds.Timestamp, date) {
			return ds, nil
		}
	}
	return strategy.DailyStrategy{}, fmt.Errorf("daily strategy for %s: %w", date.Format("2006-01-02"), storage.ErrNotFound)
}

func (s *Store) ListDailyStrategies(_ context.Context, userStrategyID int64, from, to time.Time) ([]strategy.DailyStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []strategy.DailyStrategy
	for _, ds := range s.dailyStrategies {
		if ds.UserStrategyID != userStrategyID {
			continue
		}
		if ds.Timestamp.Before(from) || !ds.Timestamp.Before(to) {
			continue
		}
		result = append(result, ds)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (s *Store) ListDailyStrategiesByAccount(_ context.Context, accountID int64, from, to time.Time) ([]strategy.DailyStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []strategy.DailyStrategy
	for _, ds := range s.dailyStrategies {
		us, ok := s.userStrategies[ds.UserStrategyID]
		if !ok || us.AccountID != accountID {
			continue
		}
		if ds.Timestamp.Before(from) || !ds.Timestamp.Before(to) {
			continue
		}
		result = append(result, ds)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (s *Store) CreateDailyStrategyStock(_ context.Context, st strategy.DailyStrategyStock) (strategy.DailyStrategyStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == 0 {
		st.ID = s.nextIDLocked()
	}
	s.dailyStrategyStocks[st.ID] = st
	return st, nil
}

func (s *Store) UpdateDailyStrategyStock(_ context.Context, st strategy.DailyStrategyStock) (strategy.DailyStrategyStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dailyStrategyStocks[st.ID]; !ok {
		return strategy.DailyStrategyStock{}, fmt.Errorf("daily strategy stock %d: %w", st.ID, storage.ErrNotFound)
	}
	s.dailyStrategyStocks[st.ID] = st
	return st, nil
}

func (s *Store) GetDailyStrategyStock(_ context.Context, id int64) (strategy.DailyStrategyStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.dailyStrategyStocks[id]
	if !ok {
		return strategy.DailyStrategyStock{}, fmt.Errorf("daily strategy stock %d: %w", id, storage.ErrNotFound)
	}
	return st, nil
}

func (s *Store) GetDailyStrategyStockByCode(_ context.Context, dailyStrategyID int64, stockCode string) (strategy.DailyStrategyStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.dailyStrategyStocks {
		if st.DailyStrategyID == dailyStrategyID && st.StockCode == stockCode {
			return st, nil
		}
	}
	return strategy.DailyStrategyStock{}, fmt.Errorf("stock %s in daily strategy %d: %w", stockCode, dailyStrategyID, storage.ErrNotFound)
}

func (s *Store) ListDailyStrategyStocks(_ context.Context, dailyStrategyID int64) ([]strategy.DailyStrategyStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []strategy.DailyStrategyStock
	for _, st := range s.dailyStrategyStocks {
		if st.DailyStrategyID == dailyStrategyID {
			result = append(result, st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, ord order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByNo[ord.OrderNo]; exists {
		return order.Order{}, fmt.Errorf("order %s already exists", ord.OrderNo)
	}
	if ord.ID == 0 {
		ord.ID = s.nextIDLocked()
	}
	s.orders[ord.ID] = ord
	s.ordersByNo[ord.OrderNo] = ord.ID
	return ord, nil
}

func (s *Store) UpdateOrder(_ context.Context, ord order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[ord.ID]; !ok {
		return order.Order{}, fmt.Errorf("order %d: %w", ord.ID, storage.ErrNotFound)
	}
	s.orders[ord.ID] = ord
	return ord, nil
}

func (s *Store) GetOrderByNo(_ context.Context, orderNo string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ordersByNo[orderNo]
	if !ok {
		return order.Order{}, fmt.Errorf("order %s: %w", orderNo, storage.ErrNotFound)
	}
	return s.orders[id], nil
}

func (s *Store) ListOrdersByStock(_ context.Context, dailyStrategyStockID int64) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []order.Order
	for _, ord := range s.orders {
		if ord.DailyStrategyStockID == dailyStrategyStockID {
			result = append(result, ord)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateExecution(_ context.Context, exec order.Execution) (order.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exec.ID == 0 {
		exec.ID = s.nextExecID
		s.nextExecID++
	}
	if exec.Sequence == 0 {
		exec.Sequence = int64(len(s.executions[exec.OrderID]) + 1)
	}
	s.executions[exec.OrderID] = append(s.executions[exec.OrderID], exec)
	return exec, nil
}

func (s *Store) ListExecutions(_ context.Context, orderID int64) ([]order.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]order.Execution(nil), s.executions[orderID]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

// CandleStore implementation --------------------------------------------------

func hourKey(c candle.HourCandle) string {
	return fmt.Sprintf("%s|%s|%02d", c.StockCode, c.Date.Format("2006-01-02"), c.Hour)
}

func minuteKey(c candle.MinuteCandle) string {
	return fmt.Sprintf("%s|%s|%s|%d", c.StockCode, c.Date.Format("2006-01-02"), c.Time.Format("15:04:05"), c.Interval)
}

func (s *Store) UpsertHourCandle(_ context.Context, c candle.HourCandle) (candle.HourCandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hourCandles[hourKey(c)] = c
	return c, nil
}

func (s *Store) ListHourCandles(_ context.Context, stockCode string, date time.Time) ([]candle.HourCandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []candle.HourCandle
	for _, c := range s.hourCandles {
		if c.StockCode == stockCode && sameDay(c.Date, date) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Hour < result[j].Hour })
	return result, nil
}

func (s *Store) UpsertMinuteCandle(_ context.Context, c candle.MinuteCandle) (candle.MinuteCandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minuteCandles[minuteKey(c)] = c
	return c, nil
}

func (s *Store) ListMinuteCandles(_ context.Context, stockCode string, date time.Time, interval int) ([]candle.MinuteCandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []candle.MinuteCandle
	for _, c := range s.minuteCandles {
		if c.StockCode == stockCode && sameDay(c.Date, date) && c.Interval == interval {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time.Before(result[j].Time) })
	return result, nil
}

// PredictionStore implementation ----------------------------------------------

func (s *Store) CreatePrediction(_ context.Context, p prediction.GapPrediction) (prediction.GapPrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.nextIDLocked()
	}
	s.predictions[p.ID] = p
	return p, nil
}

func (s *Store) ListPredictionsByDate(_ context.Context, date time.Time) ([]prediction.GapPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []prediction.GapPrediction
	for _, p := range s.predictions {
		if sameDay(p.PredictionDate, date) {
			result = append(result, p)
		}
	}
	// Best expected return first.
	sort.Slice(result, func(i, j int) bool { return result[i].ExpectedReturn > result[j].ExpectedReturn })
	return result, nil
}

func (s *Store) LatestPredictionDate(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, p := range s.predictions {
		if p.PredictionDate.After(latest) {
			latest = p.PredictionDate
		}
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("predictions: %w", storage.ErrNotFound)
	}
	return latest, nil
}

// ModelRegistryStore implementation -------------------------------------------

func (s *Store) CreateModelVersion(_ context.Context, mv prediction.ModelVersion) (prediction.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.modelVersions[mv.Version]; exists {
		return prediction.ModelVersion{}, fmt.Errorf("model version %s already exists", mv.Version)
	}
	if mv.ID == 0 {
		mv.ID = s.nextIDLocked()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	s.modelVersions[mv.Version] = mv
	return mv, nil
}

func (s *Store) ListModelVersions(_ context.Context) ([]prediction.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]prediction.ModelVersion, 0, len(s.modelVersions))
	for _, mv := range s.modelVersions {
		result = append(result, mv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) GetModelVersion(_ context.Context, version string) (prediction.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mv, ok := s.modelVersions[version]
	if !ok {
		return prediction.ModelVersion{}, fmt.Errorf("model version %s: %w", version, storage.ErrNotFound)
	}
	return mv, nil
}

func (s *Store) GetActiveModelVersion(_ context.Context) (prediction.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, mv := range s.modelVersions {
		if mv.Status == "active" {
			return mv, nil
		}
	}
	return prediction.ModelVersion{}, fmt.Errorf("active model version: %w", storage.ErrNotFound)
}

// StockStore implementation ---------------------------------------------------

func (s *Store) UpsertStock(_ context.Context, md stock.Metadata) (stock.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.stocks[md.Code]; ok {
		md.CreatedAt = existing.CreatedAt
	} else {
		md.CreatedAt = now
	}
	md.UpdatedAt = now
	s.stocks[md.Code] = md
	return md, nil
}

func (s *Store) GetStock(_ context.Context, code string) (stock.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.stocks[code]
	if !ok {
		return stock.Metadata{}, fmt.Errorf("stock %s: %w", code, storage.ErrNotFound)
	}
	return md, nil
}

func (s *Store) SearchStocks(_ context.Context, query string) ([]stock.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	var result []stock.Metadata
	for _, md := range s.stocks {
		if query == "" || strings.Contains(strings.ToLower(md.Name), query) || strings.Contains(strings.ToLower(md.Code), query) {
			result = append(result, md)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func dailyPriceKey(p stock.DailyPrice) string {
	return p.StockCode + "|" + p.Date.Format("2006-01-02")
}

func (s *Store) UpsertDailyPrice(_ context.Context, p stock.DailyPrice) (stock.DailyPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dailyPriceKey(p)
	if existing, ok := s.dailyPrices[key]; ok {
		p.ID = existing.ID
	} else if p.ID == 0 {
		p.ID = s.nextIDLocked()
	}
	s.dailyPrices[key] = p
	return p, nil
}

func (s *Store) ListDailyPrices(_ context.Context, stockCode string, from, to time.Time) ([]stock.DailyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []stock.DailyPrice
	for _, p := range s.dailyPrices {
		if p.StockCode != stockCode {
			continue
		}
		if p.Date.Before(from) || !p.Date.Before(to) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}
