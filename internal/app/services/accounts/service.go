// Package accounts manages brokerage accounts: credential verification
// against the broker, registration, balances and soft deletion.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockpredict/server/internal/app/domain/account"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/kis"
	"github.com/stockpredict/server/internal/verifycache"
	"github.com/stockpredict/server/pkg/logger"
)

// Broker is the subset of the KIS client the service needs.
type Broker interface {
	IssueToken(ctx context.Context, appKey, appSecret string, paper bool) (kis.Token, error)
	InquireBalance(ctx context.Context, req kis.BalanceRequest) (kis.Balance, error)
}

// Service manages brokerage accounts.
type Service struct {
	store  storage.AccountStore
	broker Broker
	verify verifycache.Cache
	log    *logger.Logger
}

// New constructs an accounts service.
func New(store storage.AccountStore, broker Broker, verify verifycache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	if verify == nil {
		verify = verifycache.NewMemory()
	}
	return &Service{store: store, broker: broker, verify: verify, log: log}
}

// VerifyRequest carries the credentials to verify against the broker.
type VerifyRequest struct {
	UserUID       int64
	AccountNumber string
	AccountName   string
	Type          account.Type
	HTSID         string
	AppKey        string
	AppSecret     string
}

// VerifyResult is returned on successful verification. The token redeems
// the verified credentials within ten minutes, exactly once.
type VerifyResult struct {
	VerifyToken string  `json:"verify_token"`
	Deposit     float64 `json:"deposit"`
}

// Verify checks the credentials with the broker: a token must be issuable
// and a balance inquiry must succeed. Verified credentials are parked in
// the verify cache behind a one-time token.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	if req.AccountNumber == "" {
		return VerifyResult{}, fmt.Errorf("account_number is required")
	}
	if req.AppKey == "" || req.AppSecret == "" {
		return VerifyResult{}, fmt.Errorf("app_key and app_secret are required")
	}
	if req.Type == "" {
		req.Type = account.TypeReal
	}
	if req.Type != account.TypeReal && req.Type != account.TypePaper {
		return VerifyResult{}, fmt.Errorf("only real and paper accounts can be verified")
	}
	if _, err := s.store.GetAccountByNumber(ctx, req.AccountNumber); err == nil {
		return VerifyResult{}, fmt.Errorf("account %s is already registered", req.AccountNumber)
	}

	paper := req.Type == account.TypePaper
	tok, err := s.broker.IssueToken(ctx, req.AppKey, req.AppSecret, paper)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("broker token verification failed: %w", err)
	}

	bal, err := s.broker.InquireBalance(ctx, kis.BalanceRequest{
		AccountNumber: req.AccountNumber,
		AppKey:        req.AppKey,
		AppSecret:     req.AppSecret,
		AccessToken:   tok.AccessToken,
		Paper:         paper,
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("broker balance verification failed: %w", err)
	}

	token := uuid.NewString()
	entry := verifycache.Entry{
		UserUID:       req.UserUID,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		AccountType:   string(req.Type),
		HTSID:         req.HTSID,
		AppKey:        req.AppKey,
		AppSecret:     req.AppSecret,
		AccessToken:   tok.AccessToken,
		TokenExpires:  tok.ExpiresAt.Unix(),
		Deposit:       bal.Deposit,
	}
	if err := s.verify.Put(ctx, token, entry); err != nil {
		return VerifyResult{}, err
	}

	s.log.WithField("uid", req.UserUID).WithField("account", req.AccountNumber).Info("account verified")
	return VerifyResult{VerifyToken: token, Deposit: bal.Deposit}, nil
}

// Register redeems a verify token and creates the account. The token is
// single-use and bound to the verifying user.
func (s *Service) Register(ctx context.Context, userUID int64, verifyToken string) (account.Account, error) {
	entry, err := s.verify.Pop(ctx, verifyToken)
	if err != nil {
		if errors.Is(err, verifycache.ErrNotFound) {
			return account.Account{}, fmt.Errorf("verification token expired or already used")
		}
		return account.Account{}, err
	}
	if entry.UserUID != userUID {
		return account.Account{}, fmt.Errorf("verification token belongs to another user")
	}

	acct := account.Account{
		UserUID:           entry.UserUID,
		AccountNumber:     entry.AccountNumber,
		AccountName:       entry.AccountName,
		Type:              account.Type(entry.AccountType),
		HTSID:             entry.HTSID,
		Balance:           entry.Deposit,
		AppKey:            entry.AppKey,
		AppSecret:         entry.AppSecret,
		KISAccessToken:    entry.AccessToken,
		KISTokenExpiredAt: time.Unix(entry.TokenExpires, 0),
	}
	acct, err = s.store.CreateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("uid", userUID).WithField("account_id", acct.ID).Info("account registered")
	return acct, nil
}

// CreateMock creates a simulated account with a synthetic account number
// and a starting balance. No broker credentials are involved.
func (s *Service) CreateMock(ctx context.Context, userUID int64, accountName string, balance float64) (account.Account, error) {
	if balance < 0 {
		return account.Account{}, fmt.Errorf("balance must not be negative")
	}
	if accountName == "" {
		accountName = "Mock Account"
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	acct := account.Account{
		UserUID:       userUID,
		AccountNumber: fmt.Sprintf("MOCK-%d-%s", userUID, token),
		AccountName:   accountName,
		Type:          account.TypeMock,
		Balance:       balance,
	}
	acct, err := s.store.CreateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("uid", userUID).WithField("account_id", acct.ID).Info("mock account created")
	return acct, nil
}

// Get returns an account owned by the user.
func (s *Service) Get(ctx context.Context, userUID, accountID int64) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	if acct.UserUID != userUID {
		return account.Account{}, fmt.Errorf("account %d: %w", accountID, storage.ErrNotFound)
	}
	if acct.IsDeleted {
		return account.Account{}, fmt.Errorf("account %d: %w", accountID, storage.ErrNotFound)
	}
	return acct, nil
}

// List returns the user's active accounts.
func (s *Service) List(ctx context.Context, userUID int64) ([]account.Account, error) {
	return s.store.ListAccountsByUser(ctx, userUID)
}

// Balance returns the account's current deposit. For broker-backed
// accounts the broker is queried, refreshing the cached token if expired,
// and the stored balance is updated. Mock accounts report the stored value.
func (s *Service) Balance(ctx context.Context, userUID, accountID int64) (float64, error) {
	acct, err := s.Get(ctx, userUID, accountID)
	if err != nil {
		return 0, err
	}
	if acct.Type == account.TypeMock {
		return acct.Balance, nil
	}

	if !acct.TokenValid(time.Now()) {
		tok, err := s.broker.IssueToken(ctx, acct.AppKey, acct.AppSecret, acct.IsPaper())
		if err != nil {
			return 0, fmt.Errorf("refresh broker token: %w", err)
		}
		acct.KISAccessToken = tok.AccessToken
		acct.KISTokenExpiredAt = tok.ExpiresAt
	}

	bal, err := s.broker.InquireBalance(ctx, kis.BalanceRequest{
		AccountNumber: acct.AccountNumber,
		AppKey:        acct.AppKey,
		AppSecret:     acct.AppSecret,
		AccessToken:   acct.KISAccessToken,
		Paper:         acct.IsPaper(),
	})
	if err != nil {
		return 0, err
	}

	acct.Balance = bal.Deposit
	if _, err := s.store.UpdateAccount(ctx, acct); err != nil {
		return 0, err
	}
	return bal.Deposit, nil
}

// UpdateRequest carries the mutable account fields. Nil fields are left
// unchanged.
type UpdateRequest struct {
	AccountName *string
	Balance     *float64
	HTSID       *string
	AppKey      *string
	AppSecret   *string
}

// Update changes account settings. Balance can only be set on mock
// accounts. New broker credentials are re-verified with the broker before
// they replace the stored ones, refreshing the cached token and balance.
func (s *Service) Update(ctx context.Context, userUID, accountID int64, req UpdateRequest) (account.Account, error) {
	acct, err := s.Get(ctx, userUID, accountID)
	if err != nil {
		return account.Account{}, err
	}

	if req.AccountName != nil {
		acct.AccountName = *req.AccountName
	}
	if req.HTSID != nil {
		acct.HTSID = *req.HTSID
	}
	if req.Balance != nil {
		if acct.Type != account.TypeMock {
			return account.Account{}, fmt.Errorf("balance can only be set on mock accounts")
		}
		if *req.Balance < 0 {
			return account.Account{}, fmt.Errorf("balance must not be negative")
		}
		acct.Balance = *req.Balance
	}

	if req.AppKey != nil || req.AppSecret != nil {
		if acct.Type == account.TypeMock {
			return account.Account{}, fmt.Errorf("mock accounts have no broker credentials")
		}
		if req.AppKey == nil || req.AppSecret == nil {
			return account.Account{}, fmt.Errorf("app_key and app_secret must be changed together")
		}
		tok, err := s.broker.IssueToken(ctx, *req.AppKey, *req.AppSecret, acct.IsPaper())
		if err != nil {
			return account.Account{}, fmt.Errorf("broker token verification failed: %w", err)
		}
		bal, err := s.broker.InquireBalance(ctx, kis.BalanceRequest{
			AccountNumber: acct.AccountNumber,
			AppKey:        *req.AppKey,
			AppSecret:     *req.AppSecret,
			AccessToken:   tok.AccessToken,
			Paper:         acct.IsPaper(),
		})
		if err != nil {
			return account.Account{}, fmt.Errorf("broker balance verification failed: %w", err)
		}
		acct.AppKey = *req.AppKey
		acct.AppSecret = *req.AppSecret
		acct.KISAccessToken = tok.AccessToken
		acct.KISTokenExpiredAt = tok.ExpiresAt
		acct.Balance = bal.Deposit
	}

	acct, err = s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("uid", userUID).WithField("account_id", accountID).Info("account updated")
	return acct, nil
}

// Delete soft-deletes the account and scrubs its broker credentials.
func (s *Service) Delete(ctx context.Context, userUID, accountID int64) error {
	acct, err := s.Get(ctx, userUID, accountID)
	if err != nil {
		return err
	}

	acct.IsDeleted = true
	acct.AppKey = ""
	acct.AppSecret = ""
	acct.KISAccessToken = ""
	acct.KISTokenExpiredAt = time.Time{}
	if _, err := s.store.UpdateAccount(ctx, acct); err != nil {
		return err
	}

	s.log.WithField("uid", userUID).WithField("account_id", accountID).Info("account deleted")
	return nil
}
