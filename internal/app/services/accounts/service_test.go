package accounts

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stockpredict/server/internal/app/domain/account"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/kis"
)

// fakeBroker stands in for the KIS client.
type fakeBroker struct {
	tokenErr   error
	balanceErr error
	deposit    float64
	tokenCalls int
}

func (f *fakeBroker) IssueToken(_ context.Context, appKey, _ string, _ bool) (kis.Token, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return kis.Token{}, f.tokenErr
	}
	return kis.Token{AccessToken: "tok-" + appKey, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
}

func (f *fakeBroker) InquireBalance(_ context.Context, _ kis.BalanceRequest) (kis.Balance, error) {
	if f.balanceErr != nil {
		return kis.Balance{}, f.balanceErr
	}
	return kis.Balance{Deposit: f.deposit}, nil
}

func newService(deposit float64) (*Service, *memory.Store, *fakeBroker) {
	store := memory.New()
	broker := &fakeBroker{deposit: deposit}
	return New(store, broker, nil, nil), store, broker
}

func verifyReq(uid int64) VerifyRequest {
	return VerifyRequest{
		UserUID:       uid,
		AccountNumber: "1234567801",
		AccountName:   "My Account",
		Type:          account.TypeReal,
		AppKey:        "key",
		AppSecret:     "secret",
	}
}

func TestVerifyAndRegister(t *testing.T) {
	svc, _, _ := newService(1500000)
	ctx := context.Background()

	res, err := svc.Verify(ctx, verifyReq(7))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.VerifyToken == "" {
		t.Fatalf("expected verify token")
	}
	if res.Deposit != 1500000 {
		t.Fatalf("deposit = %v, want 1500000", res.Deposit)
	}

	acct, err := svc.Register(ctx, 7, res.VerifyToken)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acct.AccountNumber != "1234567801" || acct.Balance != 1500000 {
		t.Fatalf("unexpected account %+v", acct)
	}
	if acct.KISAccessToken == "" {
		t.Fatalf("verified broker token should carry over")
	}

	// The token is single-use.
	if _, err := svc.Register(ctx, 7, res.VerifyToken); err == nil {
		t.Fatalf("reused verify token should fail")
	}
}

func TestRegisterWrongUser(t *testing.T) {
	svc, _, _ := newService(1000)
	ctx := context.Background()

	res, err := svc.Verify(ctx, verifyReq(7))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := svc.Register(ctx, 8, res.VerifyToken); err == nil {
		t.Fatalf("token issued to another user should be rejected")
	}
}

func TestVerifyBrokerRejection(t *testing.T) {
	svc, _, broker := newService(0)
	broker.tokenErr = fmt.Errorf("bad credentials")

	if _, err := svc.Verify(context.Background(), verifyReq(7)); err == nil {
		t.Fatalf("verification should fail when the broker rejects the credentials")
	}
}

func TestVerifyDuplicateAccount(t *testing.T) {
	svc, store, _ := newService(1000)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, account.Account{UserUID: 1, AccountNumber: "1234567801", Type: account.TypeReal})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if _, err := svc.Verify(ctx, verifyReq(7)); err == nil {
		t.Fatalf("already registered account should not verify")
	}
}

func TestCreateMock(t *testing.T) {
	svc, _, _ := newService(0)
	ctx := context.Background()

	acct, err := svc.CreateMock(ctx, 7, "", 5000000)
	if err != nil {
		t.Fatalf("create mock: %v", err)
	}
	if !strings.HasPrefix(acct.AccountNumber, "MOCK-7-") {
		t.Fatalf("account number = %s, want MOCK-7- prefix", acct.AccountNumber)
	}
	if acct.Type != account.TypeMock || acct.Balance != 5000000 {
		t.Fatalf("unexpected account %+v", acct)
	}
}

func TestBalanceMockAccount(t *testing.T) {
	svc, _, broker := newService(0)
	ctx := context.Background()

	acct, err := svc.CreateMock(ctx, 7, "", 1000)
	if err != nil {
		t.Fatalf("create mock: %v", err)
	}
	bal, err := svc.Balance(ctx, 7, acct.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 1000 {
		t.Fatalf("balance = %v, want 1000", bal)
	}
	if broker.tokenCalls != 0 {
		t.Fatalf("mock balance must not touch the broker")
	}
}

func TestBalanceRefreshesExpiredToken(t *testing.T) {
	svc, store, broker := newService(2000)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, account.Account{
		UserUID:           7,
		AccountNumber:     "1234567801",
		Type:              account.TypeReal,
		AppKey:            "key",
		AppSecret:         "secret",
		KISAccessToken:    "stale",
		KISTokenExpiredAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	bal, err := svc.Balance(ctx, 7, acct.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 2000 {
		t.Fatalf("balance = %v, want 2000", bal)
	}
	if broker.tokenCalls != 1 {
		t.Fatalf("expected one token refresh, got %d", broker.tokenCalls)
	}

	stored, _ := store.GetAccount(ctx, acct.ID)
	if stored.Balance != 2000 {
		t.Fatalf("stored balance = %v, want 2000", stored.Balance)
	}
	if stored.KISAccessToken == "stale" {
		t.Fatalf("token should have been refreshed")
	}
}

func TestDeleteScrubsCredentials(t *testing.T) {
	svc, store, _ := newService(1000)
	ctx := context.Background()

	res, err := svc.Verify(ctx, verifyReq(7))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	acct, err := svc.Register(ctx, 7, res.VerifyToken)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Delete(ctx, 7, acct.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, err := store.GetAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.IsDeleted {
		t.Fatalf("account should be soft-deleted")
	}
	if stored.AppKey != "" || stored.AppSecret != "" || stored.KISAccessToken != "" {
		t.Fatalf("credentials not scrubbed: %+v", stored)
	}

	// A deleted account is invisible to reads.
	if _, err := svc.Get(ctx, 7, acct.ID); err == nil {
		t.Fatalf("deleted account should not be readable")
	}
	list, err := svc.List(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted account should not be listed")
	}
}

func TestUpdateMockAccount(t *testing.T) {
	svc, store, broker := newService(0)
	ctx := context.Background()

	acct, err := svc.CreateMock(ctx, 7, "", 1000)
	if err != nil {
		t.Fatalf("create mock: %v", err)
	}

	name := "Paper Trading"
	balance := 250000.0
	updated, err := svc.Update(ctx, 7, acct.ID, UpdateRequest{AccountName: &name, Balance: &balance})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AccountName != "Paper Trading" || updated.Balance != 250000 {
		t.Fatalf("unexpected account %+v", updated)
	}
	if broker.tokenCalls != 0 {
		t.Fatalf("mock update must not touch the broker")
	}

	stored, _ := store.GetAccount(ctx, acct.ID)
	if stored.AccountName != "Paper Trading" || stored.Balance != 250000 {
		t.Fatalf("update not persisted: %+v", stored)
	}
}

func TestUpdateBalanceRealAccountRejected(t *testing.T) {
	svc, store, _ := newService(0)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, account.Account{UserUID: 7, AccountNumber: "1234567801", Type: account.TypeReal})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	balance := 100.0
	if _, err := svc.Update(ctx, 7, acct.ID, UpdateRequest{Balance: &balance}); err == nil {
		t.Fatalf("setting balance on a real account should fail")
	}
}

func TestUpdateCredentialsReverifies(t *testing.T) {
	svc, store, broker := newService(9000)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, account.Account{
		UserUID:       7,
		AccountNumber: "1234567801",
		Type:          account.TypeReal,
		AppKey:        "old-key",
		AppSecret:     "old-secret",
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	key, secret := "new-key", "new-secret"
	updated, err := svc.Update(ctx, 7, acct.ID, UpdateRequest{AppKey: &key, AppSecret: &secret})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if broker.tokenCalls != 1 {
		t.Fatalf("expected one verification round trip, got %d", broker.tokenCalls)
	}
	if updated.AppKey != "new-key" || updated.KISAccessToken != "tok-new-key" {
		t.Fatalf("credentials not adopted: %+v", updated)
	}
	if updated.Balance != 9000 {
		t.Fatalf("balance = %v, want 9000 from re-verification", updated.Balance)
	}

	// Credentials the broker rejects never replace the stored ones.
	broker.tokenErr = fmt.Errorf("bad credentials")
	bad := "bad-key"
	if _, err := svc.Update(ctx, 7, acct.ID, UpdateRequest{AppKey: &bad, AppSecret: &secret}); err == nil {
		t.Fatalf("rejected credentials should fail the update")
	}
	stored, _ := store.GetAccount(ctx, acct.ID)
	if stored.AppKey != "new-key" {
		t.Fatalf("stored key = %s, want new-key", stored.AppKey)
	}
}

func TestGetOtherUsersAccount(t *testing.T) {
	svc, _, _ := newService(0)
	ctx := context.Background()

	acct, err := svc.CreateMock(ctx, 7, "", 0)
	if err != nil {
		t.Fatalf("create mock: %v", err)
	}
	if _, err := svc.Get(ctx, 8, acct.ID); err == nil {
		t.Fatalf("cross-user access should fail")
	}
}
