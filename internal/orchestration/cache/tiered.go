package cache

import (
	"context"
	"time"

	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/metrics"
	"campaign-writer/internal/models"
)

// DefaultTTL is how long a generation result stays servable.
const DefaultTTL = 24 * time.Hour

// Store is one cache tier.
type Store interface {
	Name() string
	Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error)
	Put(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error
}

// Tiered consults each store in order and back-fills earlier tiers on a hit
// in a later one. Store errors degrade to misses.
type Tiered struct {
	stores []Store
	ttl    time.Duration
	now    func() time.Time
	log    logger.Logger
}

func NewTiered(ttl time.Duration, log logger.Logger, stores ...Store) *Tiered {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	active := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Tiered{
		stores: active,
		ttl:    ttl,
		now:    time.Now,
		log:    logger.Component(log, "generation-cache"),
	}
}

// WithClock replaces the clock used for expiry.
func (t *Tiered) WithClock(now func() time.Time) *Tiered {
	t.now = now
	return t
}

// Lookup returns a copy of the cached result for req, marked as a cache hit.
// Expired entries and entries stored under a different forbidden-word list
// are misses.
func (t *Tiered) Lookup(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, bool) {
	fp := Fingerprint(req)
	forbidden := NormalizeWords(req.Brand.ForbiddenWords)
	now := t.now()

	for i, store := range t.stores {
		entry, found, err := store.Get(ctx, fp)
		if err != nil {
			t.log.Warn("Cache tier lookup failed", map[string]interface{}{
				"tier":  store.Name(),
				"error": err.Error(),
			})
			metrics.CacheLookups.WithLabelValues(store.Name(), "error").Inc()
			continue
		}
		if !found || entry.Expired(now) || !sameWords(entry.ForbiddenWords, forbidden) {
			metrics.CacheLookups.WithLabelValues(store.Name(), "miss").Inc()
			continue
		}

		metrics.CacheLookups.WithLabelValues(store.Name(), "hit").Inc()
		remaining := entry.ExpiresAt.Sub(now)
		for _, earlier := range t.stores[:i] {
			if err := earlier.Put(ctx, entry, remaining); err != nil {
				t.log.Warn("Cache back-fill failed", map[string]interface{}{"tier": earlier.Name(), "error": err.Error()})
			}
		}

		result := entry.Result.Clone()
		result.CacheHit = true
		return result, true
	}
	return nil, false
}

// Store writes result under req's fingerprint in every tier.
func (t *Tiered) Store(ctx context.Context, req models.GenerationRequest, result *models.GenerationResult) {
	now := t.now()
	stored := result.Clone()
	stored.CacheHit = false

	entry := &models.CacheEntry{
		Fingerprint:    Fingerprint(req),
		ForbiddenWords: NormalizeWords(req.Brand.ForbiddenWords),
		Result:         stored,
		StoredAt:       now,
		ExpiresAt:      now.Add(t.ttl),
	}
	for _, store := range t.stores {
		if err := store.Put(ctx, entry, t.ttl); err != nil {
			t.log.Warn("Cache tier write failed", map[string]interface{}{
				"tier":  store.Name(),
				"error": err.Error(),
			})
		}
	}
}
