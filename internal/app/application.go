// Package app wires the domain services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/stockpredict/server/internal/app/ingest"
	accountsvc "github.com/stockpredict/server/internal/app/services/accounts"
	authsvc "github.com/stockpredict/server/internal/app/services/auth"
	candlesvc "github.com/stockpredict/server/internal/app/services/candles"
	historysvc "github.com/stockpredict/server/internal/app/services/history"
	"github.com/stockpredict/server/internal/app/services/marketdata"
	ordersvc "github.com/stockpredict/server/internal/app/services/orders"
	predictionsvc "github.com/stockpredict/server/internal/app/services/predictions"
	reportsvc "github.com/stockpredict/server/internal/app/services/reports"
	strategysvc "github.com/stockpredict/server/internal/app/services/strategies"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/app/system"
	"github.com/stockpredict/server/internal/config"
	"github.com/stockpredict/server/internal/verifycache"
	"github.com/stockpredict/server/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Accounts   storage.AccountStore
	Strategies storage.StrategyStore
	Daily      storage.DailyStrategyStore
	Orders     storage.OrderStore
	Candles    storage.CandleStore
	Prediction storage.PredictionStore
	Stocks     storage.StockStore
	Models     storage.ModelRegistryStore
}

// Options carries the external dependencies the application cannot build
// itself.
type Options struct {
	Auth config.AuthConfig

	// Broker is the KIS API client used for account verification and
	// balance refreshes.
	Broker accountsvc.Broker
	// VerifyCache holds pending account verifications; nil falls back to
	// the in-process cache.
	VerifyCache verifycache.Cache
	// Publisher and ManualOrderTopic enable the manual sell endpoint.
	Publisher        ordersvc.Publisher
	ManualOrderTopic string
	// ModelsDir is the directory holding model report bundles.
	ModelsDir string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Auth        *authsvc.Service
	Accounts    *accountsvc.Service
	Strategies  *strategysvc.Service
	History     *historysvc.Service
	Candles     *candlesvc.Service
	Predictions *predictionsvc.Service
	Reports     *reportsvc.Service
	Orders      *ordersvc.Service

	Ticks  *marketdata.TickCache
	Asking *marketdata.AskingCache

	Ingestor *ingest.Ingestor
	Stocks   storage.StockStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Strategies == nil {
		stores.Strategies = mem
	}
	if stores.Daily == nil {
		stores.Daily = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Candles == nil {
		stores.Candles = mem
	}
	if stores.Prediction == nil {
		stores.Prediction = mem
	}
	if stores.Stocks == nil {
		stores.Stocks = mem
	}
	if stores.Models == nil {
		stores.Models = mem
	}

	manager := system.NewManager()

	ticks := marketdata.NewTickCache()
	asking := marketdata.NewAskingCache()

	authService := authsvc.New(stores.Users, opts.Auth, log)
	accountService := accountsvc.New(stores.Accounts, opts.Broker, opts.VerifyCache, log)
	strategyService := strategysvc.New(stores.Strategies, stores.Daily, ticks, log)
	historyService := historysvc.New(stores.Daily, log)
	candleService := candlesvc.New(stores.Candles, ticks, log)
	predictionService := predictionsvc.New(stores.Prediction, log)
	reportService := reportsvc.New(stores.Models, opts.ModelsDir, log)
	orderService := ordersvc.New(stores.Orders, stores.Accounts, stores.Strategies,
		stores.Daily, opts.Publisher, opts.ManualOrderTopic, log)

	ingestor := ingest.New(ingest.Stores{
		Accounts:   stores.Accounts,
		Strategies: stores.Strategies,
		Daily:      stores.Daily,
		Orders:     stores.Orders,
		Stocks:     stores.Stocks,
	}, ticks, asking, candleService, log)

	janitor := marketdata.NewJanitor(ticks, asking)
	if err := manager.Register(janitor); err != nil {
		return nil, fmt.Errorf("register %s: %w", janitor.Name(), err)
	}

	return &Application{
		manager:     manager,
		log:         log,
		Auth:        authService,
		Accounts:    accountService,
		Strategies:  strategyService,
		History:     historyService,
		Candles:     candleService,
		Predictions: predictionService,
		Reports:     reportService,
		Orders:      orderService,
		Ticks:       ticks,
		Asking:      asking,
		Ingestor:    ingestor,
		Stocks:      stores.Stocks,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
