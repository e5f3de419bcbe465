package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/signalsfoundry/sitecover/model"
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis stores JSON-encoded enriched sites under Prefix+key.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	counters
}

// NewRedis connects to the configured server.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis cache: address is empty")
	}
	return NewRedisWithClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), opts.Prefix, opts.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (model.EnrichedSite, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.record(false)
		return model.EnrichedSite{}, false, nil
	}
	if err != nil {
		return model.EnrichedSite{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var site model.EnrichedSite
	if err := json.Unmarshal(raw, &site); err != nil {
		r.record(false)
		return model.EnrichedSite{}, false, fmt.Errorf("decode cached site %s: %w", key, err)
	}
	r.record(true)
	return site, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, site model.EnrichedSite) error {
	raw, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("encode site %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Stats() Stats { return r.stats() }

func (r *Redis) Close() error { return r.client.Close() }
