package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/signalsfoundry/sitecover/model"
)

const defaultMaxEntries = 100_000

// Memory is an in-process cache backed by ristretto. Every entry costs 1,
// so maxCost is the entry budget.
type Memory struct {
	cache *ristretto.Cache[string, model.EnrichedSite]
	ttl   time.Duration
	counters
}

// NewMemory creates a memory cache. ttl <= 0 keeps entries until evicted.
func NewMemory(maxCost int64, ttl time.Duration) (*Memory, error) {
	if maxCost <= 0 {
		maxCost = defaultMaxEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, model.EnrichedSite]{
		NumCounters:        maxCost * 10,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Memory{cache: c, ttl: ttl}, nil
}

func (m *Memory) Get(_ context.Context, key string) (model.EnrichedSite, bool, error) {
	v, ok := m.cache.Get(key)
	m.record(ok)
	return v, ok, nil
}

// Set stores site and waits for the write buffer to drain so the value is
// visible to the next Get.
func (m *Memory) Set(_ context.Context, key string, site model.EnrichedSite) error {
	if m.ttl > 0 {
		m.cache.SetWithTTL(key, site, 1, m.ttl)
	} else {
		m.cache.Set(key, site, 1)
	}
	m.cache.Wait()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Del(key)
	return nil
}

func (m *Memory) Stats() Stats { return m.stats() }

func (m *Memory) Close() error {
	m.cache.Close()
	return nil
}
