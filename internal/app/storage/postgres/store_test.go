package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/stockpredict/server/internal/app/domain/account"
	"github.com/stockpredict/server/internal/app/domain/order"
	"github.com/stockpredict/server/internal/app/domain/user"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/marketclock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM users WHERE uid").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), 7)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want storage.ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserReturnsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"uid"}).AddRow(int64(3)))

	u, err := store.CreateUser(context.Background(), user.User{
		Nickname:     "trader",
		PasswordHash: "hash",
		Role:         user.RoleUser,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.UID != 3 {
		t.Fatalf("uid = %d, want 3", u.UID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAccountMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE accounts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateAccount(context.Background(), account.Account{ID: 99})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want storage.ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateExecutionAssignsSequence(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO order_executions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sequence"}).AddRow(int64(11), int64(2)))

	exec, err := store.CreateExecution(context.Background(), order.Execution{
		OrderID:          5,
		ExecutedQuantity: 3,
		ExecutedPrice:    70000,
		ExecutedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if exec.ID != 11 || exec.Sequence != 2 {
		t.Fatalf("execution = %+v, want id 11 sequence 2", exec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Nickname: "it-user", PasswordHash: "h", Role: user.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	acct, err := store.CreateAccount(ctx, account.Account{
		UserUID:       u.UID,
		AccountNumber: "11112222-01",
		Type:          account.TypeMock,
		Balance:       1000,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	fetched, err := store.GetAccountByNumber(ctx, acct.AccountNumber)
	if err != nil {
		t.Fatalf("get account by number: %v", err)
	}
	if fetched.ID != acct.ID {
		t.Fatalf("fetched id %d, want %d", fetched.ID, acct.ID)
	}

	if _, err := store.GetDailyStrategyByDate(ctx, 1, marketclock.Today()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for empty plan, got %v", err)
	}
}
