// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
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

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, storage.ErrNotFound)...)
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (nickname, password_hash, role, access_token, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING uid
	`, u.Nickname, u.PasswordHash, u.Role, u.AccessToken, u.RefreshToken, u.CreatedAt, u.UpdatedAt).Scan(&u.UID)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET nickname = $2, password_hash = $3, role = $4, access_token = $5, refresh_token = $6, updated_at = $7
		WHERE uid = $1
	`, u.UID, u.Nickname, u.PasswordHash, u.Role, u.AccessToken, u.RefreshToken, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, fmt.Errorf("user %d: %w", u.UID, storage.ErrNotFound)
	}
	return u, nil
}

const userColumns = `uid, nickname, password_hash, role, access_token, refresh_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.UID, &u.Nickname, &u.PasswordHash, &u.Role, &u.AccessToken, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, uid int64) (user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE uid = $1
	`, uid))
	if err != nil {
		return user.User{}, notFound(err, "user %d", uid)
	}
	return u, nil
}

func (s *Store) GetUserByNickname(ctx context.Context, nickname string) (user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE nickname = $1
	`, nickname))
	if err != nil {
		return user.User{}, notFound(err, "user %q", nickname)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY uid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- AccountStore -----------------------------------------------------------

const accountColumns = `id, user_uid, account_number, account_name, type, hts_id, balance,
	app_key, app_secret, kis_access_token, kis_token_expired_at, is_deleted, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (account.Account, error) {
	var (
		acct      account.Account
		expiredAt sql.NullTime
	)
	err := row.Scan(&acct.ID, &acct.UserUID, &acct.AccountNumber, &acct.AccountName, &acct.Type,
		&acct.HTSID, &acct.Balance, &acct.AppKey, &acct.AppSecret, &acct.KISAccessToken,
		&expiredAt, &acct.IsDeleted, &acct.CreatedAt, &acct.UpdatedAt)
	if expiredAt.Valid {
		acct.KISTokenExpiredAt = expiredAt.Time
	}
	return acct, err
}

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (user_uid, account_number, account_name, type, hts_id, balance,
			app_key, app_secret, kis_access_token, kis_token_expired_at, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, acct.UserUID, acct.AccountNumber, acct.AccountName, acct.Type, acct.HTSID, acct.Balance,
		acct.AppKey, acct.AppSecret, acct.KISAccessToken, nullTime(acct.KISTokenExpiredAt),
		acct.IsDeleted, acct.CreatedAt, acct.UpdatedAt).Scan(&acct.ID)
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	acct.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET account_number = $2, account_name = $3, type = $4, hts_id = $5, balance = $6,
			app_key = $7, app_secret = $8, kis_access_token = $9, kis_token_expired_at = $10,
			is_deleted = $11, updated_at = $12
		WHERE id = $1
	`, acct.ID, acct.AccountNumber, acct.AccountName, acct.Type, acct.HTSID, acct.Balance,
		acct.AppKey, acct.AppSecret, acct.KISAccessToken, nullTime(acct.KISTokenExpiredAt),
		acct.IsDeleted, acct.UpdatedAt)
	if err != nil {
		return account.Account{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return account.Account{}, fmt.Errorf("account %d: %w", acct.ID, storage.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (account.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1
	`, id))
	if err != nil {
		return account.Account{}, notFound(err, "account %d", id)
	}
	return acct, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (account.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE account_number = $1 AND is_deleted = FALSE
	`, accountNumber))
	if err != nil {
		return account.Account{}, notFound(err, "account %s", accountNumber)
	}
	return acct, nil
}

func (s *Store) ListAccountsByUser(ctx context.Context, userUID int64) ([]account.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE user_uid = $1 AND is_deleted = FALSE ORDER BY id
	`, userUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}

// --- StrategyStore ----------------------------------------------------------

func (s *Store) ListStrategyInfo(ctx context.Context) ([]strategy.Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description FROM strategy_info ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []strategy.Info
	for rows.Next() {
		var info strategy.Info
		if err := rows.Scan(&info.ID, &info.Name, &info.Description); err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

func (s *Store) GetStrategyInfo(ctx context.Context, id int64) (strategy.Info, error) {
	var info strategy.Info
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description FROM strategy_info WHERE id = $1
	`, id).Scan(&info.ID, &info.Name, &info.Description)
	if err != nil {
		return strategy.Info{}, notFound(err, "strategy %d", id)
	}
	return info, nil
}

func (s *Store) ListWeightTypes(ctx context.Context) ([]strategy.WeightType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description FROM strategy_weight_types ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []strategy.WeightType
	for rows.Next() {
		var wt strategy.WeightType
		if err := rows.Scan(&wt.ID, &wt.Name, &wt.Description); err != nil {
			return nil, err
		}
		result = append(result, wt)
	}
	return result, rows.Err()
}

const userStrategyColumns = `id, account_id, strategy_id, weight_type_id, investment_weight,
	loss_cut_ratio, take_profit_ratio, is_auto, status, is_deleted, created_at, updated_at`

func scanUserStrategy(row interface{ Scan(...any) error }) (strategy.UserStrategy, error) {
	var us strategy.UserStrategy
	err := row.Scan(&us.ID, &us.AccountID, &us.StrategyID, &us.WeightTypeID, &us.InvestmentWeight,
		&us.LossCutRatio, &us.TakeProfitRatio, &us.IsAuto, &us.Status, &us.IsDeleted, &us.CreatedAt, &us.UpdatedAt)
	return us, err
}

func (s *Store) CreateUserStrategy(ctx context.Context, us strategy.UserStrategy) (strategy.UserStrategy, error) {
	now := time.Now().UTC()
	us.CreatedAt = now
	us.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_strategies (account_id, strategy_id, weight_type_id, investment_weight,
			loss_cut_ratio, take_profit_ratio, is_auto, status, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, us.AccountID, us.StrategyID, us.WeightTypeID, us.InvestmentWeight,
		us.LossCutRatio, us.TakeProfitRatio, us.IsAuto, us.Status, us.IsDeleted, us.CreatedAt, us.UpdatedAt).Scan(&us.ID)
	if err != nil {
		return strategy.UserStrategy{}, err
	}
	return us, nil
}

func (s *Store) UpdateUserStrategy(ctx context.Context, us strategy.UserStrategy) (strategy.UserStrategy, error) {
	us.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE user_strategies
		SET weight_type_id = $2, investment_weight = $3, loss_cut_ratio = $4, take_profit_ratio = $5,
			is_auto = $6, status = $7, is_deleted = $8, updated_at = $9
		WHERE id = $1
	`, us.ID, us.WeightTypeID, us.InvestmentWeight, us.LossCutRatio, us.TakeProfitRatio,
		us.IsAuto, us.Status, us.IsDeleted, us.UpdatedAt)
	if err != nil {
		return strategy.UserStrategy{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return strategy.UserStrategy{}, fmt.Errorf("user strategy %d: %w", us.ID, storage.ErrNotFound)
	}
	return us, nil
}

func (s *Store) GetUserStrategy(ctx context.Context, id int64) (strategy.UserStrategy, error) {
	us, err := scanUserStrategy(s.db.QueryRowContext(ctx, `
		SELECT `+userStrategyColumns+` FROM user_strategies WHERE id = $1
	`, id))
	if err != nil {
		return strategy.UserStrategy{}, notFound(err, "user strategy %d", id)
	}
	return us, nil
}

func (s *Store) ListUserStrategiesByAccount(ctx context.Context, accountID int64) ([]strategy.UserStrategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userStrategyColumns+` FROM user_strategies
		WHERE account_id = $1 AND is_deleted = FALSE ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []strategy.UserStrategy
	for rows.Next() {
		us, err := scanUserStrategy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, us)
	}
	return result, rows.Err()
}

// --- DailyStrategyStore -----------------------------------------------------

const dailyStrategyColumns = `id, user_strategy_id, timestamp, buy_amount, sell_amount,
	total_profit_amount, total_profit_rate, created_at, updated_at`

func scanDailyStrategy(row interface{ Scan(...any) error }) (strategy.DailyStrategy, error) {
	var ds strategy.DailyStrategy
	err := row.Scan(&ds.ID, &ds.UserStrategyID, &ds.Timestamp, &ds.BuyAmount, &ds.SellAmount,
		&ds.TotalProfitAmount, &ds.TotalProfitRate, &ds.CreatedAt, &ds.UpdatedAt)
	return ds, err
}

func (s *Store) CreateDailyStrategy(ctx context.Context, ds strategy.DailyStrategy) (strategy.DailyStrategy, error) {
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_strategies (user_strategy_id, timestamp, buy_amount, sell_amount,
			total_profit_amount, total_profit_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, ds.UserStrategyID, ds.Timestamp, ds.BuyAmount, ds.SellAmount,
		ds.TotalProfitAmount, ds.TotalProfitRate, ds.CreatedAt, ds.UpdatedAt).Scan(&ds.ID)
	if err != nil {
		return strategy.DailyStrategy{}, err
	}
	return ds, nil
}

func (s *Store) UpdateDailyStrategy(ctx context.Context, ds strategy.DailyStrategy) (strategy.DailyStrategy, error) {
	ds.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE daily_strategies
		SET buy_amount = $2, sell_amount = $3, total_profit_amount = $4, total_profit_rate = $5, updated_at = $6
		WHERE id = $1
	`, ds.ID, ds.BuyAmount, ds.SellAmount, ds.TotalProfitAmount, ds.TotalProfitRate, ds.UpdatedAt)
	if err != nil {
		return strategy.DailyStrategy{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return strategy.DailyStrategy{}, fmt.Errorf("daily strategy %d: %w", ds.ID, storage.ErrNotFound)
	}
	return ds, nil
}

func (s *Store) GetDailyStrategy(ctx context.Context, id int64) (strategy.DailyStrategy, error) {
	ds, err := scanDailyStrategy(s.db.QueryRowContext(ctx, `
		SELECT `+dailyStrategyColumns+` FROM daily_strategies WHERE id = $1
	`, id))
	if err != nil {
		return strategy.DailyStrategy{}, notFound(err, "daily strategy %d", id)
	}
	return ds, nil
}

func (s *Store) GetDailyStrategyByDate(ctx context.Context, userStrategyID int64, date time.Time) (strategy.DailyStrategy, error) {
	ds, err := scanDailyStrategy(s.db.QueryRowContext(ctx, `
		SELECT `+dailyStrategyColumns+` FROM daily_strategies
		WHERE user_strategy_id = $1 AND timestamp::date = $2::date
	`, userStrategyID, date))
	if err != nil {
		return strategy.DailyStrategy{}, notFound(err, "daily strategy for %s", date.Format("2006-01-02"))
	}
	return ds, nil
}

func (s *Store) ListDailyStrategies(ctx context.Context, userStrategyID int64, from, to time.Time) ([]strategy.DailyStrategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dailyStrategyColumns+` FROM daily_strategies
		WHERE user_strategy_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp
	`, userStrategyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDailyStrategies(rows)
}

func (s *Store) ListDailyStrategiesByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]strategy.DailyStrategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.user_strategy_id, d.timestamp, d.buy_amount, d.sell_amount,
			d.total_profit_amount, d.total_profit_rate, d.created_at, d.updated_at
		FROM daily_strategies d
		JOIN user_strategies us ON us.id = d.user_strategy_id
		WHERE us.account_id = $1 AND d.timestamp >= $2 AND d.timestamp < $3
		ORDER BY d.timestamp
	`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDailyStrategies(rows)
}

func collectDailyStrategies(rows *sql.Rows) ([]strategy.DailyStrategy, error) {
	var result []strategy.DailyStrategy
	for rows.Next() {
		ds, err := scanDailyStrategy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ds)
	}
	return result, rows.Err()
}

const dailyStockColumns = `id, daily_strategy_id, stock_code, stock_name, exchange, stock_open,
	target_price, target_quantity, target_sell_price, stop_loss_price,
	buy_price, buy_quantity, sell_price, sell_quantity, profit_rate`

func scanDailyStock(row interface{ Scan(...any) error }) (strategy.DailyStrategyStock, error) {
	var st strategy.DailyStrategyStock
	err := row.Scan(&st.ID, &st.DailyStrategyID, &st.StockCode, &st.StockName, &st.Exchange, &st.StockOpen,
		&st.TargetPrice, &st.TargetQuantity, &st.TargetSellPrice, &st.StopLossPrice,
		&st.BuyPrice, &st.BuyQuantity, &st.SellPrice, &st.SellQuantity, &st.ProfitRate)
	return st, err
}

func (s *Store) CreateDailyStrategyStock(ctx context.Context, st strategy.DailyStrategyStock) (strategy.DailyStrategyStock, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_strategy_stocks (daily_strategy_id, stock_code, stock_name, exchange, stock_open,
			target_price, target_quantity, target_sell_price, stop_loss_price,
			buy_price, buy_quantity, sell_price, sell_quantity, profit_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, st.DailyStrategyID, st.StockCode, st.StockName, st.Exchange, st.StockOpen,
		st.TargetPrice, st.TargetQuantity, st.TargetSellPrice, st.StopLossPrice,
		st.BuyPrice, st.BuyQuantity, st.SellPrice, st.SellQuantity, st.ProfitRate).Scan(&st.ID)
	if err != nil {
		return strategy.DailyStrategyStock{}, err
	}
	return st, nil
}

func (s *Store) UpdateDailyStrategyStock(ctx context.Context, st strategy.DailyStrategyStock) (strategy.DailyStrategyStock, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE daily_strategy_stocks
		SET buy_price = $2, buy_quantity = $3, sell_price = $4, sell_quantity = $5, profit_rate = $6
		WHERE id = $1
	`, st.ID, st.BuyPrice, st.BuyQuantity, st.SellPrice, st.SellQuantity, st.ProfitRate)
	if err != nil {
		return strategy.DailyStrategyStock{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return strategy.DailyStrategyStock{}, fmt.Errorf("daily strategy stock %d: %w", st.ID, storage.ErrNotFound)
	}
	return st, nil
}

func (s *Store) GetDailyStrategyStock(ctx context.Context, id int64) (strategy.DailyStrategyStock, error) {
	st, err := scanDailyStock(s.db.QueryRowContext(ctx, `
		SELECT `+dailyStockColumns+` FROM daily_strategy_stocks WHERE id = $1
	`, id))
	if err != nil {
		return strategy.DailyStrategyStock{}, notFound(err, "daily strategy stock %d", id)
	}
	return st, nil
}

func (s *Store) GetDailyStrategyStockByCode(ctx context.Context, dailyStrategyID int64, stockCode string) (strategy.DailyStrategyStock, error) {
	st, err := scanDailyStock(s.db.QueryRowContext(ctx, `
		SELECT `+dailyStockColumns+` FROM daily_strategy_stocks
		WHERE daily_strategy_id = $1 AND stock_code = $2
	`, dailyStrategyID, stockCode))
	if err != nil {
		return strategy.DailyStrategyStock{}, notFound(err, "stock %s in daily strategy %d", stockCode, dailyStrategyID)
	}
	return st, nil
}

func (s *Store) ListDailyStrategyStocks(ctx context.Context, dailyStrategyID int64) ([]strategy.DailyStrategyStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dailyStockColumns+` FROM daily_strategy_stocks
		WHERE daily_strategy_id = $1 ORDER BY id
	`, dailyStrategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []strategy.DailyStrategyStock
	for rows.Next() {
		st, err := scanDailyStock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// --- OrderStore -------------------------------------------------------------

const orderColumns = `id, daily_strategy_stock_id, order_no, type, quantity, price, dvsn, account_no,
	is_mock, status, total_executed_quantity, total_executed_price, remaining_quantity,
	is_fully_executed, ordered_at`

func scanOrder(row interface{ Scan(...any) error }) (order.Order, error) {
	var ord order.Order
	err := row.Scan(&ord.ID, &ord.DailyStrategyStockID, &ord.OrderNo, &ord.Type, &ord.Quantity,
		&ord.Price, &ord.Dvsn, &ord.AccountNo, &ord.IsMock, &ord.Status,
		&ord.TotalExecutedQuantity, &ord.TotalExecutedPrice, &ord.RemainingQuantity,
		&ord.IsFullyExecuted, &ord.OrderedAt)
	return ord, err
}

func (s *Store) CreateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (daily_strategy_stock_id, order_no, type, quantity, price, dvsn, account_no,
			is_mock, status, total_executed_quantity, total_executed_price, remaining_quantity,
			is_fully_executed, ordered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, ord.DailyStrategyStockID, ord.OrderNo, ord.Type, ord.Quantity, ord.Price, ord.Dvsn, ord.AccountNo,
		ord.IsMock, ord.Status, ord.TotalExecutedQuantity, ord.TotalExecutedPrice, ord.RemainingQuantity,
		ord.IsFullyExecuted, ord.OrderedAt).Scan(&ord.ID)
	if err != nil {
		return order.Order{}, err
	}
	return ord, nil
}

func (s *Store) UpdateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, total_executed_quantity = $3, total_executed_price = $4,
			remaining_quantity = $5, is_fully_executed = $6
		WHERE id = $1
	`, ord.ID, ord.Status, ord.TotalExecutedQuantity, ord.TotalExecutedPrice,
		ord.RemainingQuantity, ord.IsFullyExecuted)
	if err != nil {
		return order.Order{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, fmt.Errorf("order %d: %w", ord.ID, storage.ErrNotFound)
	}
	return ord, nil
}

func (s *Store) GetOrderByNo(ctx context.Context, orderNo string) (order.Order, error) {
	ord, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE order_no = $1
	`, orderNo))
	if err != nil {
		return order.Order{}, notFound(err, "order %s", orderNo)
	}
	return ord, nil
}

func (s *Store) ListOrdersByStock(ctx context.Context, dailyStrategyStockID int64) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE daily_strategy_stock_id = $1 ORDER BY id
	`, dailyStrategyStockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ord)
	}
	return result, rows.Err()
}

func (s *Store) CreateExecution(ctx context.Context, exec order.Execution) (order.Execution, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO order_executions (order_id, sequence, executed_quantity, executed_price,
			total_executed_quantity, total_executed_price, remaining_quantity, is_fully_executed, executed_at)
		VALUES ($1,
			COALESCE((SELECT MAX(sequence) FROM order_executions WHERE order_id = $1), 0) + 1,
			$2, $3, $4, $5, $6, $7, $8)
		RETURNING id, sequence
	`, exec.OrderID, exec.ExecutedQuantity, exec.ExecutedPrice,
		exec.TotalExecutedQuantityAfter, exec.TotalExecutedPriceAfter,
		exec.RemainingQuantityAfter, exec.IsFullyExecutedAfter, exec.ExecutedAt).Scan(&exec.ID, &exec.Sequence)
	if err != nil {
		return order.Execution{}, err
	}
	return exec, nil
}

func (s *Store) ListExecutions(ctx context.Context, orderID int64) ([]order.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, sequence, executed_quantity, executed_price,
			total_executed_quantity, total_executed_price, remaining_quantity, is_fully_executed, executed_at
		FROM order_executions WHERE order_id = $1 ORDER BY sequence
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []order.Execution
	for rows.Next() {
		var exec order.Execution
		if err := rows.Scan(&exec.ID, &exec.OrderID, &exec.Sequence, &exec.ExecutedQuantity, &exec.ExecutedPrice,
			&exec.TotalExecutedQuantityAfter, &exec.TotalExecutedPriceAfter,
			&exec.RemainingQuantityAfter, &exec.IsFullyExecutedAfter, &exec.ExecutedAt); err != nil {
			return nil, err
		}
		result = append(result, exec)
	}
	return result, rows.Err()
}

// --- CandleStore ------------------------------------------------------------

func (s *Store) UpsertHourCandle(ctx context.Context, c candle.HourCandle) (candle.HourCandle, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hour_candles (stock_code, date, hour, open, high, low, close, volume, trade_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stock_code, date, hour) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume, trade_count = EXCLUDED.trade_count
	`, c.StockCode, c.Date, c.Hour, c.Open, c.High, c.Low, c.Close, c.Volume, c.TradeCount)
	if err != nil {
		return candle.HourCandle{}, err
	}
	return c, nil
}

func (s *Store) ListHourCandles(ctx context.Context, stockCode string, date time.Time) ([]candle.HourCandle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_code, date, hour, open, high, low, close, volume, trade_count
		FROM hour_candles WHERE stock_code = $1 AND date = $2::date ORDER BY hour
	`, stockCode, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []candle.HourCandle
	for rows.Next() {
		var c candle.HourCandle
		if err := rows.Scan(&c.StockCode, &c.Date, &c.Hour, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TradeCount); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) UpsertMinuteCandle(ctx context.Context, c candle.MinuteCandle) (candle.MinuteCandle, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO minute_candles (stock_code, date, bucket_time, interval_minutes, open, high, low, close, volume, trade_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stock_code, date, bucket_time, interval_minutes) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume, trade_count = EXCLUDED.trade_count
	`, c.StockCode, c.Date, c.Time, c.Interval, c.Open, c.High, c.Low, c.Close, c.Volume, c.TradeCount)
	if err != nil {
		return candle.MinuteCandle{}, err
	}
	return c, nil
}

func (s *Store) ListMinuteCandles(ctx context.Context, stockCode string, date time.Time, interval int) ([]candle.MinuteCandle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_code, date, bucket_time, interval_minutes, open, high, low, close, volume, trade_count
		FROM minute_candles WHERE stock_code = $1 AND date = $2::date AND interval_minutes = $3 ORDER BY bucket_time
	`, stockCode, date, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []candle.MinuteCandle
	for rows.Next() {
		var c candle.MinuteCandle
		if err := rows.Scan(&c.StockCode, &c.Date, &c.Time, &c.Interval, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TradeCount); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- PredictionStore --------------------------------------------------------

func (s *Store) CreatePrediction(ctx context.Context, p prediction.GapPrediction) (prediction.GapPrediction, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO gap_predictions (timestamp, stock_code, stock_name, exchange, prediction_date,
			gap_rate, stock_open, prob_up, prob_down, predicted_direction, expected_return,
			return_if_up, return_if_down, max_return_if_up, take_profit_target, signal,
			model_version, confidence, actual_close, actual_high, actual_low, actual_return,
			return_diff, actual_max_return, max_return_diff, direction_correct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING id
	`, p.Timestamp, p.StockCode, p.StockName, p.Exchange, p.PredictionDate,
		p.GapRate, p.StockOpen, p.ProbUp, p.ProbDown, p.PredictedDirection, p.ExpectedReturn,
		p.ReturnIfUp, p.ReturnIfDown, p.MaxReturnIfUp, p.TakeProfitTarget, p.Signal,
		p.ModelVersion, p.Confidence, p.ActualClose, p.ActualHigh, p.ActualLow, p.ActualReturn,
		p.ReturnDiff, p.ActualMaxReturn, p.MaxReturnDiff, p.DirectionCorrect).Scan(&p.ID)
	if err != nil {
		return prediction.GapPrediction{}, err
	}
	return p, nil
}

const predictionColumns = `id, timestamp, stock_code, stock_name, exchange, prediction_date,
	gap_rate, stock_open, prob_up, prob_down, predicted_direction, expected_return,
	return_if_up, return_if_down, max_return_if_up, take_profit_target, signal,
	model_version, confidence, actual_close, actual_high, actual_low, actual_return,
	return_diff, actual_max_return, max_return_diff, direction_correct`

func (s *Store) ListPredictionsByDate(ctx context.Context, date time.Time) ([]prediction.GapPrediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+predictionColumns+` FROM gap_predictions
		WHERE prediction_date = $1::date ORDER BY expected_return DESC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []prediction.GapPrediction
	for rows.Next() {
		var p prediction.GapPrediction
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.StockCode, &p.StockName, &p.Exchange, &p.PredictionDate,
			&p.GapRate, &p.StockOpen, &p.ProbUp, &p.ProbDown, &p.PredictedDirection, &p.ExpectedReturn,
			&p.ReturnIfUp, &p.ReturnIfDown, &p.MaxReturnIfUp, &p.TakeProfitTarget, &p.Signal,
			&p.ModelVersion, &p.Confidence, &p.ActualClose, &p.ActualHigh, &p.ActualLow, &p.ActualReturn,
			&p.ReturnDiff, &p.ActualMaxReturn, &p.MaxReturnDiff, &p.DirectionCorrect); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) LatestPredictionDate(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(prediction_date) FROM gap_predictions
	`).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, fmt.Errorf("predictions: %w", storage.ErrNotFound)
	}
	return latest.Time, nil
}

// --- ModelRegistryStore -----------------------------------------------------

const modelColumns = `id, version, status, trigger_type, training_samples, training_data_start,
	training_data_end, training_duration_seconds, created_at, activated_at`

func scanModelVersion(row interface{ Scan(...any) error }) (prediction.ModelVersion, error) {
	var (
		mv          prediction.ModelVersion
		activatedAt sql.NullTime
	)
	err := row.Scan(&mv.ID, &mv.Version, &mv.Status, &mv.TriggerType, &mv.TrainingSamples,
		&mv.TrainingDataStart, &mv.TrainingDataEnd, &mv.TrainingDurationSeconds, &mv.CreatedAt, &activatedAt)
	if activatedAt.Valid {
		mv.ActivatedAt = activatedAt.Time
	}
	return mv, err
}

func (s *Store) CreateModelVersion(ctx context.Context, mv prediction.ModelVersion) (prediction.ModelVersion, error) {
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO model_registry (version, status, trigger_type, training_samples, training_data_start,
			training_data_end, training_duration_seconds, created_at, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, mv.Version, mv.Status, mv.TriggerType, mv.TrainingSamples, mv.TrainingDataStart,
		mv.TrainingDataEnd, mv.TrainingDurationSeconds, mv.CreatedAt, nullTime(mv.ActivatedAt)).Scan(&mv.ID)
	if err != nil {
		return prediction.ModelVersion{}, err
	}
	return mv, nil
}

func (s *Store) ListModelVersions(ctx context.Context) ([]prediction.ModelVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modelColumns+` FROM model_registry ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []prediction.ModelVersion
	for rows.Next() {
		mv, err := scanModelVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, mv)
	}
	return result, rows.Err()
}

func (s *Store) GetModelVersion(ctx context.Context, version string) (prediction.ModelVersion, error) {
	mv, err := scanModelVersion(s.db.QueryRowContext(ctx, `
		SELECT `+modelColumns+` FROM model_registry WHERE version = $1
	`, version))
	if err != nil {
		return prediction.ModelVersion{}, notFound(err, "model version %s", version)
	}
	return mv, nil
}

func (s *Store) GetActiveModelVersion(ctx context.Context) (prediction.ModelVersion, error) {
	mv, err := scanModelVersion(s.db.QueryRowContext(ctx, `
		SELECT `+modelColumns+` FROM model_registry WHERE status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`))
	if err != nil {
		return prediction.ModelVersion{}, notFound(err, "active model version")
	}
	return mv, nil
}

// --- StockStore -------------------------------------------------------------

func (s *Store) UpsertStock(ctx context.Context, md stock.Metadata) (stock.Metadata, error) {
	now := time.Now().UTC()
	md.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stock_metadata (code, name, exchange, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, exchange = EXCLUDED.exchange, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, md.Code, md.Name, md.Exchange, md.IsActive, now).Scan(&md.CreatedAt)
	if err != nil {
		return stock.Metadata{}, err
	}
	return md, nil
}

func (s *Store) GetStock(ctx context.Context, code string) (stock.Metadata, error) {
	var md stock.Metadata
	err := s.db.QueryRowContext(ctx, `
		SELECT code, name, exchange, is_active, created_at, updated_at
		FROM stock_metadata WHERE code = $1
	`, code).Scan(&md.Code, &md.Name, &md.Exchange, &md.IsActive, &md.CreatedAt, &md.UpdatedAt)
	if err != nil {
		return stock.Metadata{}, notFound(err, "stock %s", code)
	}
	return md, nil
}

func (s *Store) SearchStocks(ctx context.Context, query string) ([]stock.Metadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, exchange, is_active, created_at, updated_at
		FROM stock_metadata
		WHERE $1 = '' OR code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY code
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []stock.Metadata
	for rows.Next() {
		var md stock.Metadata
		if err := rows.Scan(&md.Code, &md.Name, &md.Exchange, &md.IsActive, &md.CreatedAt, &md.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, md)
	}
	return result, rows.Err()
}

func (s *Store) UpsertDailyPrice(ctx context.Context, p stock.DailyPrice) (stock.DailyPrice, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stock_prices (stock_code, date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_code, date) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume
		RETURNING id
	`, p.StockCode, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume).Scan(&p.ID)
	if err != nil {
		return stock.DailyPrice{}, err
	}
	return p, nil
}

func (s *Store) ListDailyPrices(ctx context.Context, stockCode string, from, to time.Time) ([]stock.DailyPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stock_code, date, open, high, low, close, volume
		FROM stock_prices WHERE stock_code = $1 AND date >= $2 AND date < $3 ORDER BY date
	`, stockCode, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []stock.DailyPrice
	for rows.Next() {
		var p stock.DailyPrice
		if err := rows.Scan(&p.ID, &p.StockCode, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
