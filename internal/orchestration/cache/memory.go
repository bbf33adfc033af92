package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"campaign-writer/internal/models"
)

const (
	defaultNumCounters = 1e6
	defaultMaxCost     = 64 << 20
	defaultBufferItems = 64
)

// MemoryCache is the in-process tier. Expiry is checked by the caller against
// the entry's ExpiresAt; the ristretto TTL only bounds memory.
type MemoryCache struct {
	cache *ristretto.Cache
}

func NewMemoryCache(maxCost int64) (*MemoryCache, error) {
	if maxCost <= 0 {
		maxCost = defaultMaxCost
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: c}, nil
}

func (m *MemoryCache) Name() string { return "memory" }

func (m *MemoryCache) Get(_ context.Context, fingerprint string) (*models.CacheEntry, bool, error) {
	value, found := m.cache.Get(fingerprint)
	if !found {
		return nil, false, nil
	}
	entry, ok := value.(*models.CacheEntry)
	if !ok {
		return nil, false, nil
	}
	return cloneEntry(entry), true, nil
}

// Put stores a copy of entry. Writes are made visible before returning.
func (m *MemoryCache) Put(_ context.Context, entry *models.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.cache.SetWithTTL(entry.Fingerprint, cloneEntry(entry), cost(entry), ttl)
	m.cache.Wait()
	return nil
}

func (m *MemoryCache) Close() {
	m.cache.Close()
}

func cost(entry *models.CacheEntry) int64 {
	n := int64(256)
	if entry.Result != nil {
		for _, v := range entry.Result.Variants {
			n += int64(len(v.Text))
		}
		for _, s := range entry.Result.Report.Stages {
			n += int64(64 * (len(s.Messages) + len(s.Findings)))
		}
	}
	return n
}

func cloneEntry(e *models.CacheEntry) *models.CacheEntry {
	out := *e
	out.ForbiddenWords = append([]string(nil), e.ForbiddenWords...)
	out.Result = e.Result.Clone()
	return &out
}
