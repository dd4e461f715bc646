package httpapi

import (
	"net/http"
	"time"

	"github.com/stockpredict/server/internal/app/domain/account"
	accountsvc "github.com/stockpredict/server/internal/app/services/accounts"
	"github.com/stockpredict/server/internal/middleware"
)

// accountView is the API shape of a brokerage account. Broker credentials
// and cached tokens never leave the server.
type accountView struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	Type          string    `json:"type"`
	HTSID         string    `json:"hts_id,omitempty"`
	Balance       float64   `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAccountView(a account.Account) accountView {
	return accountView{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		Type:          string(a.Type),
		HTSID:         a.HTSID,
		Balance:       a.Balance,
		CreatedAt:     a.CreatedAt,
	}
}

func (h *handler) verifyAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		Type          string `json:"type"`
		HTSID         string `json:"hts_id"`
		AppKey        string `json:"app_key"`
		AppSecret     string `json:"app_secret"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Accounts.Verify(r.Context(), accountsvc.VerifyRequest{
		UserUID:       middleware.UserUID(r.Context()),
		AccountNumber: payload.AccountNumber,
		AccountName:   payload.AccountName,
		Type:          account.Type(payload.Type),
		HTSID:         payload.HTSID,
		AppKey:        payload.AppKey,
		AppSecret:     payload.AppSecret,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) registerAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VerifyToken string `json:"verify_token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.Register(r.Context(), middleware.UserUID(r.Context()), payload.VerifyToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountView(acct))
}

func (h *handler) createMockAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountName string  `json:"account_name"`
		Balance     float64 `json:"balance"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.CreateMock(r.Context(), middleware.UserUID(r.Context()), payload.AccountName, payload.Balance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountView(acct))
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.app.Accounts.List(r.Context(), middleware.UserUID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]accountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, toAccountView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	acct, err := h.app.Accounts.Get(r.Context(), middleware.UserUID(r.Context()), id)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(acct))
}

func (h *handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var payload struct {
		AccountName *string  `json:"account_name"`
		Balance     *float64 `json:"balance"`
		HTSID       *string  `json:"hts_id"`
		AppKey      *string  `json:"app_key"`
		AppSecret   *string  `json:"app_secret"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.Update(r.Context(), middleware.UserUID(r.Context()), id, accountsvc.UpdateRequest{
		AccountName: payload.AccountName,
		Balance:     payload.Balance,
		HTSID:       payload.HTSID,
		AppKey:      payload.AppKey,
		AppSecret:   payload.AppSecret,
	})
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(acct))
}

func (h *handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := h.app.Accounts.Balance(r.Context(), middleware.UserUID(r.Context()), id)
	if err != nil {
		writeServiceError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Accounts.Delete(r.Context(), middleware.UserUID(r.Context()), id); err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownAccount loads the account and enforces ownership for the nested
// account-scoped routes.
func (h *handler) ownAccount(w http.ResponseWriter, r *http.Request) (account.Account, bool) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return account.Account{}, false
	}
	acct, err := h.app.Accounts.Get(r.Context(), middleware.UserUID(r.Context()), id)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return account.Account{}, false
	}
	return acct, true
}
