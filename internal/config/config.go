// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the server.
type Config struct {
	AppName    string
	AppVersion string
	Debug      bool

	HTTPHost string
	HTTPPort int

	Database DatabaseConfig
	Kafka    KafkaConfig
	Auth     AuthConfig

	CORSOrigins []string

	// RedisAddr enables the shared account-verification cache when set.
	RedisAddr     string
	RedisPassword string

	// ModelsDir is the directory holding model report bundles.
	ModelsDir string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string

	MaxOpenConns int
	MaxIdleConns int
}

// DSN assembles the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		d.Host, d.Port, d.Name, d.User, d.Password,
	)
}

// KafkaConfig holds broker addresses and topic names.
type KafkaConfig struct {
	Brokers []string
	GroupID string

	// StartOffset is "latest" or "earliest" for new consumer groups.
	StartOffset string

	TopicDailyStrategy string
	TopicOrderSignal   string
	TopicPrice         string
	TopicWSCommand     string
	TopicManualSell    string
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// MasterSecret gates master account registration.
	MasterSecret string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:    getString("APP_NAME", "Stock Predict API"),
		AppVersion: getString("APP_VERSION", "0.1.0"),
		Debug:      getBool("DEBUG", false),
		HTTPHost:   getString("HTTP_HOST", "0.0.0.0"),
		HTTPPort:   getInt("HTTP_PORT", 8003),
		Database: DatabaseConfig{
			Host:         getString("DB_HOST", "localhost"),
			Port:         getInt("DB_PORT", 5432),
			Name:         getString("DB_NAME", "stock_predict"),
			User:         getString("DB_USER", "postgres"),
			Password:     getString("DB_PASSWORD", ""),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 15),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getString("KAFKA_BROKERS", "localhost:19092")),
			GroupID:            getString("KAFKA_GROUP_ID", "websocket-server-group"),
			StartOffset:        getString("KAFKA_START_OFFSET", "latest"),
			TopicDailyStrategy: getString("KAFKA_TOPIC_DAILY_STRATEGY", "daily_strategy"),
			TopicOrderSignal:   getString("KAFKA_TOPIC_ORDER_SIGNAL", "order_signal"),
			TopicPrice:         getString("KAFKA_TOPIC_PRICE", "stock_price"),
			TopicWSCommand:     getString("KAFKA_TOPIC_WS_COMMAND", "kis_websocket_commands"),
			TopicManualSell:    getString("KAFKA_TOPIC_MANUAL_SELL", "manual-sell-signal"),
		},
		Auth: AuthConfig{
			Secret:          getString("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			MasterSecret:    getString("MASTER_SECRET_KEY", "master-secret-key-change-this"),
		},
		CORSOrigins:   splitList(getString("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RedisAddr:     getString("REDIS_ADDR", ""),
		RedisPassword: getString("REDIS_PASSWORD", ""),
		ModelsDir:     getString("MODELS_DIR", "models"),
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP_PORT %d", cfg.HTTPPort)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must name at least one broker")
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
