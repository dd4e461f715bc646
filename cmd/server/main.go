// Command server runs the stock trading API: REST endpoints, real-time
// price streaming and the Kafka ingest loops.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	app "github.com/stockpredict/server/internal/app"
	"github.com/stockpredict/server/internal/app/httpapi"
	"github.com/stockpredict/server/internal/app/metrics"
	"github.com/stockpredict/server/internal/app/storage/postgres"
	"github.com/stockpredict/server/internal/config"
	"github.com/stockpredict/server/internal/database"
	"github.com/stockpredict/server/internal/kafka"
	"github.com/stockpredict/server/internal/kis"
	"github.com/stockpredict/server/internal/verifycache"
	"github.com/stockpredict/server/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log := logger.New("server", level)

	stores := app.Stores{}
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.WithError(err).Warn("database unavailable; falling back to in-memory stores")
	} else {
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		pg := postgres.New(db)
		stores = app.Stores{
			Users:      pg,
			Accounts:   pg,
			Strategies: pg,
			Daily:      pg,
			Orders:     pg,
			Candles:    pg,
			Prediction: pg,
			Stocks:     pg,
			Models:     pg,
		}
		log.WithField("database", cfg.Database.Name).Info("postgres connected")
	}

	var verify verifycache.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unavailable; using in-process verify cache")
		} else {
			verify = verifycache.NewRedis(client)
			defer client.Close()
		}
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}

	application, err := app.New(stores, app.Options{
		Auth:             cfg.Auth,
		Broker:           kis.New(),
		VerifyCache:      verify,
		Publisher:        producer,
		ManualOrderTopic: cfg.Kafka.TopicManualSell,
		ModelsDir:        cfg.ModelsDir,
	}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	if err := application.Attach(producer); err != nil {
		return fmt.Errorf("attach producer: %w", err)
	}
	if err := attachConsumers(application, cfg.Kafka); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	router := httpapi.NewRouter(application, httpapi.RouterConfig{
		AppName:     cfg.AppName,
		AppVersion:  cfg.AppVersion,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   20,
		RateBurst:   40,
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("server stopped")
	return nil
}

// attachConsumers wires one consumer per inbound topic, each in its own
// consumer group.
func attachConsumers(application *app.Application, cfg config.KafkaConfig) error {
	ing := application.Ingestor
	topics := []struct {
		topic   string
		handler kafka.Handler
	}{
		{cfg.TopicDailyStrategy, ing.HandleDailyStrategy},
		{cfg.TopicOrderSignal, ing.HandleOrderMessage},
		{cfg.TopicPrice, ing.HandlePriceTick},
		{cfg.TopicWSCommand, ing.HandleWSCommand},
	}
	for _, t := range topics {
		topic, handler := t.topic, t.handler
		instrumented := func(ctx context.Context, value []byte) error {
			err := handler(ctx, value)
			metrics.RecordKafkaMessage(topic, err)
			return err
		}
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.GroupID + "-" + topic,
			StartOffset: cfg.StartOffset,
		}, instrumented)
		if err != nil {
			return fmt.Errorf("consumer for %s: %w", t.topic, err)
		}
		if err := application.Attach(consumer); err != nil {
			return fmt.Errorf("attach consumer for %s: %w", t.topic, err)
		}
	}
	return nil
}
