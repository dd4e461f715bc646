// Package kis is a client for the Korea Investment & Securities open API.
// It covers token issuance and balance inquiry and enforces the vendor's
// per-account request rate limits.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockpredict/server/internal/marketclock"
)

const (
	// RealBaseURL is the production endpoint; PaperBaseURL serves paper
	// trading accounts.
	RealBaseURL  = "https://openapi.koreainvestment.com:9443"
	PaperBaseURL = "https://openapivts.koreainvestment.com:29443"

	balanceTrIDReal  = "TTTC8434R"
	balanceTrIDPaper = "VTTC8434R"

	// Vendor limits: 20 requests/second on real accounts, 2 on paper.
	realRateLimit  = 20
	paperRateLimit = 2

	tokenExpiryLayout = "2006-01-02 15:04:05"
)

// Client talks to the KIS open API. One Client serves all accounts; rate
// limiters are tracked per app key.
type Client struct {
	httpClient *http.Client
	realURL    string
	paperURL   string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs overrides the API endpoints, used in tests.
func WithBaseURLs(realURL, paperURL string) Option {
	return func(c *Client) {
		c.realURL = realURL
		c.paperURL = paperURL
	}
}

// New creates a Client with the production endpoints.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		realURL:    RealBaseURL,
		paperURL:   PaperBaseURL,
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) baseURL(paper bool) string {
	if paper {
		return c.paperURL
	}
	return c.realURL
}

func (c *Client) limiter(appKey string, paper bool) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := appKey
	if paper {
		key = "paper:" + appKey
	}
	lim, ok := c.limiters[key]
	if !ok {
		limit := realRateLimit
		if paper {
			limit = paperRateLimit
		}
		lim = rate.NewLimiter(rate.Limit(limit), limit)
		c.limiters[key] = lim
	}
	return lim
}

// Token is an issued API access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenExpired string `json:"access_token_token_expired"`
	ErrorCode    string `json:"error_code"`
	ErrorDesc    string `json:"error_description"`
}

// IssueToken requests a new access token for the given credentials.
func (c *Client) IssueToken(ctx context.Context, appKey, appSecret string, paper bool) (Token, error) {
	if err := c.limiter(appKey, paper).Wait(ctx); err != nil {
		return Token{}, err
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     appKey,
		"appsecret":  appSecret,
	})
	if err != nil {
		return Token{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(paper)+"/oauth2/tokenP", bytes.NewReader(payload))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, err
	}
	if resp.StatusCode == http.StatusForbidden {
		// The vendor returns 403 for bad credentials and for tokens
		// requested too frequently (one per minute per app key).
		return Token{}, fmt.Errorf("kis token rejected (status 403): check app key/secret or retry after a minute: %s", body)
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("kis token request failed: status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("kis token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("kis token response missing access_token: %s %s", tr.ErrorCode, tr.ErrorDesc)
	}

	tok := Token{AccessToken: tr.AccessToken}
	if tr.TokenExpired != "" {
		// Expiry is reported as KST wall-clock time.
		if exp, err := time.ParseInLocation(tokenExpiryLayout, tr.TokenExpired, marketclock.KST); err == nil {
			tok.ExpiresAt = exp
		}
	}
	if tok.ExpiresAt.IsZero() && tr.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// Balance is the deposit summary of a brokerage account.
type Balance struct {
	Deposit float64
}

// BalanceRequest identifies the account to query.
type BalanceRequest struct {
	AccountNumber string
	AppKey        string
	AppSecret     string
	AccessToken   string
	Paper         bool
}

type balanceResponse struct {
	RtCd    string `json:"rt_cd"`
	MsgCd   string `json:"msg_cd"`
	Msg1    string `json:"msg1"`
	Output2 []struct {
		DncaTotAmt string `json:"dnca_tot_amt"`
	} `json:"output2"`
}

// InquireBalance fetches the account's deposit total. The account number
// carries the product code in its last two digits.
func (c *Client) InquireBalance(ctx context.Context, reqData BalanceRequest) (Balance, error) {
	if err := c.limiter(reqData.AppKey, reqData.Paper).Wait(ctx); err != nil {
		return Balance{}, err
	}

	cano, prdtCd := SplitAccountNumber(reqData.AccountNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL(reqData.Paper)+"/uapi/domestic-stock/v1/trading/inquire-balance", nil)
	if err != nil {
		return Balance{}, err
	}

	trID := balanceTrIDReal
	if reqData.Paper {
		trID = balanceTrIDPaper
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+reqData.AccessToken)
	req.Header.Set("appkey", reqData.AppKey)
	req.Header.Set("appsecret", reqData.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	q := req.URL.Query()
	q.Set("CANO", cano)
	q.Set("ACNT_PRDT_CD", prdtCd)
	q.Set("AFHR_FLPR_YN", "N")
	q.Set("OFL_YN", "")
	q.Set("INQR_DVSN", "02")
	q.Set("UNPR_DVSN", "01")
	q.Set("FUND_STTL_ICLD_YN", "N")
	q.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	q.Set("PRCS_DVSN", "00")
	q.Set("CTX_AREA_FK100", "")
	q.Set("CTX_AREA_NK100", "")
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Balance{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Balance{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Balance{}, fmt.Errorf("kis balance request failed: status %d: %s", resp.StatusCode, body)
	}

	var br balanceResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return Balance{}, fmt.Errorf("kis balance response: %w", err)
	}
	if br.RtCd != "0" {
		return Balance{}, fmt.Errorf("kis balance rejected: %s %s", br.MsgCd, br.Msg1)
	}
	if len(br.Output2) == 0 {
		return Balance{}, fmt.Errorf("kis balance response missing output2")
	}

	deposit, err := strconv.ParseFloat(br.Output2[0].DncaTotAmt, 64)
	if err != nil {
		return Balance{}, fmt.Errorf("kis balance dnca_tot_amt %q: %w", br.Output2[0].DncaTotAmt, err)
	}
	return Balance{Deposit: deposit}, nil
}

// SplitAccountNumber splits an account number into the 8-digit account
// and 2-digit product code. The canonical form is "12345678-01"; the
// hyphen may be omitted.
func SplitAccountNumber(accountNumber string) (cano, prdtCd string) {
	if before, after, found := strings.Cut(accountNumber, "-"); found {
		if after == "" {
			after = "01"
		}
		return before, after
	}
	if len(accountNumber) <= 8 {
		return accountNumber, "01"
	}
	return accountNumber[:8], accountNumber[8:]
}
