// Package httpapi exposes the REST, SSE and websocket surface of the
// server.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/stockpredict/server/internal/app"
	"github.com/stockpredict/server/internal/app/metrics"
	"github.com/stockpredict/server/internal/middleware"
	"github.com/stockpredict/server/pkg/logger"
)

// RouterConfig carries the settings the router needs beyond the
// application itself.
type RouterConfig struct {
	AppName     string
	AppVersion  string
	CORSOrigins []string

	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit int
	RateBurst int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	cfg RouterConfig
	log *logger.Logger
}

// NewRouter returns the fully wired HTTP handler.
func NewRouter(application *app.Application, cfg RouterConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, cfg: cfg, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/stream", h.stream).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.websocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)

	api.HandleFunc("/users/me", h.currentUser).Methods(http.MethodGet)
	api.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{uid:[0-9]+}", h.getUser).Methods(http.MethodGet)

	api.HandleFunc("/accounts/verify", h.verifyAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/mock", h.createMockAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts", h.registerAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts", h.listAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.getAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.updateAccount).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.deleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{id:[0-9]+}/balance", h.accountBalance).Methods(http.MethodGet)

	api.HandleFunc("/strategies", h.strategyCatalog).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/strategies", h.listStrategies).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/strategies", h.createStrategy).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}/strategies/{sid:[0-9]+}", h.updateStrategy).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id:[0-9]+}/strategies/{sid:[0-9]+}", h.deleteStrategy).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{id:[0-9]+}/positions", h.positions).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/daily-strategies", h.dailyStrategies).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/history/{year:[0-9]+}/{month:[0-9]+}", h.monthlyHistory).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/orders/sell", h.manualSell).Methods(http.MethodPost)

	api.HandleFunc("/daily-strategy-stocks/{id:[0-9]+}/orders", h.listOrders).Methods(http.MethodGet)

	api.HandleFunc("/predictions", h.predictions).Methods(http.MethodGet)
	api.HandleFunc("/candles/{code}/hours", h.hourCandles).Methods(http.MethodGet)
	api.HandleFunc("/candles/{code}/minutes", h.minuteCandles).Methods(http.MethodGet)
	api.HandleFunc("/stocks", h.searchStocks).Methods(http.MethodGet)

	api.HandleFunc("/reports/models", h.listModels).Methods(http.MethodGet)
	api.HandleFunc("/reports/models/{version}", h.getModel).Methods(http.MethodGet)
	api.HandleFunc("/reports/{version}", h.report).Methods(http.MethodGet)
	api.HandleFunc("/reports/{version}/images/{filename}", h.reportImage).Methods(http.MethodGet)

	authMW := middleware.NewAuthMiddleware(application.Auth.Secret(), log, []string{
		"/",
		"/health",
		"/metrics",
		"/stream",
		"/ws",
		"/api/v1/auth/register",
		"/api/v1/auth/login",
		"/api/v1/auth/refresh",
	})

	// The limiter sits inside auth so authenticated requests are keyed by
	// user rather than by shared client IP.
	var chained http.Handler = r
	if cfg.RateLimit > 0 {
		rl := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
		rl.StartCleanup(10 * time.Minute)
		chained = rl.Handler(chained)
	}
	chained = authMW.Handler(chained)
	chained = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(chained)
	chained = metrics.InstrumentHandler(chained)
	chained = middleware.NewTracingMiddleware(log).Handler(chained)
	return chained
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    h.cfg.AppName,
		"version": h.cfg.AppVersion,
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
