package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/tokenP", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "key", body["appkey"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":               "tok123",
			"token_type":                 "Bearer",
			"expires_in":                 86400,
			"access_token_token_expired": "2025-03-06 10:30:00",
		})
	}))
	defer srv.Close()

	c := New(WithBaseURLs(srv.URL, srv.URL))
	tok, err := c.IssueToken(context.Background(), "key", "secret", false)
	require.NoError(t, err)
	assert.Equal(t, "tok123", tok.AccessToken)
	assert.Equal(t, 2025, tok.ExpiresAt.Year())
	assert.Equal(t, 10, tok.ExpiresAt.Hour())
}

func TestIssueTokenForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(WithBaseURLs(srv.URL, srv.URL))
	_, err := c.IssueToken(context.Background(), "key", "secret", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestInquireBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/uapi/domestic-stock/v1/trading/inquire-balance", r.URL.Path)
		assert.Equal(t, "Bearer tok123", r.Header.Get("authorization"))
		assert.Equal(t, "TTTC8434R", r.Header.Get("tr_id"))
		assert.Equal(t, "12345678", r.URL.Query().Get("CANO"))
		assert.Equal(t, "01", r.URL.Query().Get("ACNT_PRDT_CD"))

		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0",
			"output2": []map[string]string{
				{"dnca_tot_amt": "1500000"},
			},
		})
	}))
	defer srv.Close()

	c := New(WithBaseURLs(srv.URL, srv.URL))
	bal, err := c.InquireBalance(context.Background(), BalanceRequest{
		AccountNumber: "1234567801",
		AppKey:        "key",
		AppSecret:     "secret",
		AccessToken:   "tok123",
	})
	require.NoError(t, err)
	assert.Equal(t, 1500000.0, bal.Deposit)
}

func TestInquireBalanceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd":  "1",
			"msg_cd": "EGW00123",
			"msg1":   "token expired",
		})
	}))
	defer srv.Close()

	c := New(WithBaseURLs(srv.URL, srv.URL))
	_, err := c.InquireBalance(context.Background(), BalanceRequest{AccountNumber: "1234567801"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestInquireBalancePaperUsesPaperTrID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "VTTC8434R", r.Header.Get("tr_id"))
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd":   "0",
			"output2": []map[string]string{{"dnca_tot_amt": "0"}},
		})
	}))
	defer srv.Close()

	c := New(WithBaseURLs(srv.URL, srv.URL))
	_, err := c.InquireBalance(context.Background(), BalanceRequest{AccountNumber: "1234567801", Paper: true})
	require.NoError(t, err)
}

func TestSplitAccountNumber(t *testing.T) {
	// Canonical hyphenated form.
	cano, prdt := SplitAccountNumber("12345678-01")
	assert.Equal(t, "12345678", cano)
	assert.Equal(t, "01", prdt)

	cano, prdt = SplitAccountNumber("12345678-29")
	assert.Equal(t, "12345678", cano)
	assert.Equal(t, "29", prdt)

	cano, prdt = SplitAccountNumber("1234567829")
	assert.Equal(t, "12345678", cano)
	assert.Equal(t, "29", prdt)

	cano, prdt = SplitAccountNumber("12345678")
	assert.Equal(t, "12345678", cano)
	assert.Equal(t, "01", prdt)
}
