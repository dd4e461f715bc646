// Package account defines brokerage accounts linked to users.
package account

import "time"

// Type distinguishes real, paper-trading and mock accounts.
type Type string

const (
	TypeReal  Type = "real"
	TypePaper Type = "paper"
	TypeMock  Type = "mock"
)

// Valid reports whether the type is one of the known values.
func (t Type) Valid() bool {
	switch t {
	case TypeReal, TypePaper, TypeMock:
		return true
	}
	return false
}

// Account is a brokerage account. REAL and PAPER accounts carry KIS API
// credentials; MOCK accounts are synthesized for simulated trading.
type Account struct {
	ID            int64
	UserUID       int64
	AccountNumber string
	AccountName   string
	Type          Type
	HTSID         string
	Balance       float64

	AppKey    string
	AppSecret string

	// Cached KIS access token, refreshed on expiry.
	KISAccessToken    string
	KISTokenExpiredAt time.Time

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenValid reports whether the cached KIS token can still be used.
func (a Account) TokenValid(now time.Time) bool {
	return a.KISAccessToken != "" && a.KISTokenExpiredAt.After(now)
}

// IsPaper reports whether KIS calls should use the paper-trading endpoints.
func (a Account) IsPaper() bool { return a.Type == TypePaper }
