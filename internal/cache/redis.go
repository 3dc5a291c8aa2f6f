package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisProvider stores cache entries in Redis.
type RedisProvider struct {
	rdb    *redis.Client
	prefix string
}

// RedisConfig holds connection settings for NewRedisProvider.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "cybersentinel:".
	Prefix string
}

// NewRedisProvider connects to Redis and verifies the connection with PING.
func NewRedisProvider(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisProvider, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &RedisProvider{rdb: rdb, prefix: cfg.Prefix}, nil
}

// NewRedisProviderFromClient wraps an existing client without pinging it.
func NewRedisProviderFromClient(rdb *redis.Client, prefix string) *RedisProvider {
	return &RedisProvider{rdb: rdb, prefix: prefix}
}

// Get implements Provider.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set implements Provider. A non-positive ttl stores the key without expiry.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, p.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Del implements Provider.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	if err := p.rdb.Del(ctx, p.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close implements Provider.
func (p *RedisProvider) Close() error {
	return p.rdb.Close()
}
