// Package verifycache stores short-lived, single-use account verification
// tokens. Tokens are issued when broker credentials pass verification and
// consumed when the account is actually registered.
package verifycache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// TTL is how long a verification token stays valid.
const TTL = 10 * time.Minute

// ErrNotFound is returned when a token is missing, expired, or already used.
var ErrNotFound = errors.New("verification token not found")

// Entry is the verified credential set held behind a token.
type Entry struct {
	UserUID       int64   `json:"user_uid"`
	AccountNumber string  `json:"account_number"`
	AccountName   string  `json:"account_name"`
	AccountType   string  `json:"account_type"`
	HTSID         string  `json:"hts_id"`
	AppKey        string  `json:"app_key"`
	AppSecret     string  `json:"app_secret"`
	AccessToken   string  `json:"access_token"`
	TokenExpires  int64   `json:"token_expires"`
	Deposit       float64 `json:"deposit"`
}

// Cache stores verification entries keyed by token. Pop is single-use: a
// token can only be redeemed once.
type Cache interface {
	Put(ctx context.Context, token string, entry Entry) error
	Pop(ctx context.Context, token string) (Entry, error)
}

// MemoryCache is the default in-process backend.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Put(_ context.Context, token string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[token] = memoryEntry{entry: entry, expiresAt: c.now().Add(TTL)}

	// Drop anything already expired while we hold the lock.
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) Pop(_ context.Context, token string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return Entry{}, ErrNotFound
	}
	delete(c.entries, token)
	if c.now().After(e.expiresAt) {
		return Entry{}, ErrNotFound
	}
	return e.entry, nil
}

// RedisCache backs the cache with Redis so tokens survive restarts and are
// shared across replicas.
type RedisCache struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(token string) string {
	return "verify:" + token
}

func (c *RedisCache) Put(ctx context.Context, token string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(token), payload, TTL).Err()
}

func (c *RedisCache) Pop(ctx context.Context, token string) (Entry, error) {
	payload, err := c.client.GetDel(ctx, redisKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
