package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/stockpredict/server/internal/app/domain/user"
	"github.com/stockpredict/server/internal/app/services/auth"
	"github.com/stockpredict/server/internal/middleware"
)

// userView is the API shape of a user; credentials and issued tokens
// never leave the server.
type userView struct {
	UID       int64     `json:"uid"`
	Nickname  string    `json:"nickname"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u user.User) userView {
	return userView{
		UID:       u.UID,
		Nickname:  u.Nickname,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nickname     string `json:"nickname"`
		Password     string `json:"password"`
		Role         string `json:"role"`
		MasterSecret string `json:"master_secret"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.app.Auth.Register(r.Context(), payload.Nickname, payload.Password, user.Role(payload.Role), payload.MasterSecret)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(u))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nickname string `json:"nickname"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, tokens, err := h.app.Auth.Login(r.Context(), payload.Nickname, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User userView `json:"user"`
		auth.TokenPair
	}{toUserView(u), tokens})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tokens, err := h.app.Auth.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserUID(r.Context())
	if err := h.app.Auth.Logout(r.Context(), uid); err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserUID(r.Context())
	u, err := h.app.Auth.GetUser(r.Context(), uid)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	accts, err := h.app.Accounts.List(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]accountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, toAccountView(a))
	}
	writeJSON(w, http.StatusOK, struct {
		userView
		Accounts []accountView `json:"accounts"`
	}{toUserView(u), views})
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	if middleware.Role(r.Context()) != string(user.RoleMaster) {
		writeError(w, http.StatusForbidden, fmt.Errorf("master role required"))
		return
	}
	uid, err := pathInt64(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Auth.GetUser(r.Context(), uid)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if middleware.Role(r.Context()) != string(user.RoleMaster) {
		writeError(w, http.StatusForbidden, fmt.Errorf("master role required"))
		return
	}
	users, err := h.app.Auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}
