// Package cache stores enriched site results between evaluations.
package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/sitecover/model"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// ErrUnknownBackend is returned by New for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown cache backend")

// Cache holds enriched sites by key. A miss is (zero, false, nil); err is
// reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) (model.EnrichedSite, bool, error)
	Set(ctx context.Context, key string, site model.EnrichedSite) error
	Delete(ctx context.Context, key string) error
	Stats() Stats
	Close() error
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Ratio returns hits over total lookups.
func (s Stats) Ratio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config selects and sizes a backend.
type Config struct {
	Backend       string
	TTL           time.Duration
	MaxCost       int64
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	RedisPrefix   string
}

// New builds the backend named by cfg.Backend. An empty name selects memory.
func New(cfg Config) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemory(cfg.MaxCost, cfg.TTL)
	case BackendRedis:
		return NewRedis(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		})
	case BackendNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// SiteKey identifies one evaluation of a site. The geometry and window are
// part of the key so edits to a boundary or a changed window miss.
func SiteKey(site model.Site, window time.Duration) string {
	var sb strings.Builder
	sb.WriteString("site:")
	sb.WriteString(strconv.FormatInt(site.ID, 10))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(fnv64a(site.Geometry), 16))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatInt(int64(window/time.Second), 10))
	return sb.String()
}

func fnv64a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
		return
	}
	c.misses.Add(1)
}

func (c *counters) stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
