package cache

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/models"
)

func baseRequest() models.GenerationRequest {
	return models.GenerationRequest{
		RequestID:       "req-1",
		TenantID:        "tenant-1",
		TaskKind:        models.TaskSubjectLine,
		Objective:       "Announce the spring sale",
		AudienceContext: map[string]string{"segment": "vip", "region": "eu"},
		Brand: models.BrandGuidelines{
			Voice:          "warm",
			ForbiddenWords: []string{"Cheap", "spam"},
			AllowedDomains: []string{"acme.com"},
		},
		VariantCount: 3,
		SubmittedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func sampleResult() *models.GenerationResult {
	return &models.GenerationResult{
		RunID:    "run-1",
		Status:   models.RunSucceeded,
		TaskKind: models.TaskSubjectLine,
		Variants: []models.Variant{
			models.NewVariant("Spring savings are here", models.FormatText),
			models.NewVariant("Your spring picks", models.FormatText),
		},
		ModelsUsed: []string{"gpt-4o"},
		Report: models.GateReport{Stages: []models.StageResult{
			{Stage: "style_lint", Status: models.StagePassed},
		}},
	}
}

func TestFingerprint_IgnoresVolatileFields(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.RequestID = "req-2"
	b.TenantID = "tenant-2"
	b.SubmittedAt = time.Now()
	b.Quota = &models.QuotaStatus{DailyLimit: 5, UsedToday: 1}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}

func TestFingerprint_IsOrderAndCaseInsensitiveForLists(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Brand.ForbiddenWords = []string{" SPAM", "cheap", "spam"}
	b.AudienceContext = map[string]string{"region": "eu", "segment": "vip"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_ChangesWithSemanticFields(t *testing.T) {
	base := Fingerprint(baseRequest())

	mutations := map[string]func(r *models.GenerationRequest){
		"forbidden words": func(r *models.GenerationRequest) { r.Brand.ForbiddenWords = []string{"cheap"} },
		"task kind":       func(r *models.GenerationRequest) { r.TaskKind = models.TaskCTA },
		"audience":        func(r *models.GenerationRequest) { r.AudienceContext["segment"] = "new" },
		"variant count":   func(r *models.GenerationRequest) { r.VariantCount = 2 },
		"human review":    func(r *models.GenerationRequest) { r.RequiresHumanReview = true },
		"objective":       func(r *models.GenerationRequest) { r.Objective = "Announce the winter sale" },
		"footer":          func(r *models.GenerationRequest) { r.Brand.ComplianceFooter = "Unsubscribe" },
		"source content":  func(r *models.GenerationRequest) { r.SourceContent = "Old copy" },
		"goal":            func(r *models.GenerationRequest) { r.OptimizationGoal = models.GoalClarity },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := baseRequest()
			mutate(&req)
			assert.NotEqual(t, base, Fingerprint(req))
		})
	}
}

func newMemory(t *testing.T) *MemoryCache {
	t.Helper()
	m, err := NewMemoryCache(1 << 20)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestTiered_HitReturnsUnchangedCopy(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(time.Hour, logger.NewTestLogger(t), newMemory(t))

	req := baseRequest()
	tiered.Store(ctx, req, sampleResult())

	got, ok := tiered.Lookup(ctx, req)
	require.True(t, ok)
	assert.True(t, got.CacheHit)
	assert.Equal(t, sampleResult().Variants, got.Variants)

	got.Variants[0].Text = "mutated"
	again, ok := tiered.Lookup(ctx, req)
	require.True(t, ok)
	assert.Equal(t, "Spring savings are here", again.Variants[0].Text)
}

func TestTiered_ExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	tiered := NewTiered(time.Hour, logger.NewNoOpLogger(), newMemory(t)).
		WithClock(func() time.Time { return now })

	req := baseRequest()
	tiered.Store(ctx, req, sampleResult())

	now = now.Add(59 * time.Minute)
	_, ok := tiered.Lookup(ctx, req)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = tiered.Lookup(ctx, req)
	assert.False(t, ok)
}

type fakeStore struct {
	entry *models.CacheEntry
}

func (f *fakeStore) Name() string { return "fake" }
func (f *fakeStore) Get(context.Context, string) (*models.CacheEntry, bool, error) {
	if f.entry == nil {
		return nil, false, nil
	}
	return cloneEntry(f.entry), true, nil
}
func (f *fakeStore) Put(_ context.Context, e *models.CacheEntry, _ time.Duration) error {
	f.entry = cloneEntry(e)
	return nil
}

func TestTiered_ForbiddenWordMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	tiered := NewTiered(time.Hour, logger.NewNoOpLogger(), store)

	req := baseRequest()
	tiered.Store(ctx, req, sampleResult())
	store.entry.ForbiddenWords = []string{"cheap"}

	_, ok := tiered.Lookup(ctx, req)
	assert.False(t, ok)
}

func TestTiered_RedisHitBackfillsMemory(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	shared := NewRedisCache(client, "cw:")
	writer := NewTiered(24*time.Hour, logger.NewNoOpLogger(), newMemory(t), shared)
	req := baseRequest()
	writer.Store(ctx, req, sampleResult())

	key := "cw:gen:" + Fingerprint(req)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	// A second process with a cold memory tier.
	memory := newMemory(t)
	reader := NewTiered(24*time.Hour, logger.NewNoOpLogger(), memory, shared)
	got, ok := reader.Lookup(ctx, req)
	require.True(t, ok)
	assert.True(t, got.CacheHit)
	assert.Equal(t, "run-1", got.RunID)

	entry, found, err := memory.Get(ctx, Fingerprint(req))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-1", entry.Result.RunID)
	assert.False(t, entry.Result.CacheHit)
}

func TestRedisCache_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tiered := NewTiered(time.Minute, logger.NewNoOpLogger(), NewRedisCache(client, ""))
	req := baseRequest()
	tiered.Store(ctx, req, sampleResult())

	mr.FastForward(2 * time.Minute)
	_, ok := tiered.Lookup(ctx, req)
	assert.False(t, ok)
}

func TestTiered_RedisErrorDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	req := baseRequest()

	mock.ExpectGet("cw:gen:" + Fingerprint(req)).SetErr(stderrors.New("connection refused"))

	tiered := NewTiered(time.Hour, logger.NewTestLogger(t), NewRedisCache(client, "cw:"))
	_, ok := tiered.Lookup(ctx, req)

	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("gen:abc").SetVal("{not json")

	_, found, err := NewRedisCache(client, "").Get(ctx, "abc")
	assert.Error(t, err)
	assert.False(t, found)
}
