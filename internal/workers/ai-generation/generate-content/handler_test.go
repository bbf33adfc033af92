package generatecontent

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-writer/internal/common/config"
	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/models"
)

type fakeGenerator struct {
	got    []models.GenerationRequest
	result *models.GenerationResult
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	f.got = append(f.got, req)
	return f.result, f.err
}

type fakeTenants struct {
	prepareErr error
	claims     int
}

func (f *fakeTenants) Prepare(_ context.Context, req *models.GenerationRequest) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	req.Brand.Voice = "warm"
	f.claims++
	return nil
}

func (f *fakeTenants) Release(context.Context, models.GenerationRequest) {
	f.claims--
}

func newHandler(t *testing.T, gen Generator, tenants Tenants) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), gen, tenants, logger.NewTestLogger(t))
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 2*time.Minute, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, LoadConfig(config.WorkerConfig{Timeout: 5000}).Timeout)
}

func TestParseInput(t *testing.T) {
	h := newHandler(t, &fakeGenerator{}, nil)

	input, err := h.parseInput(`{"task_kind":"subject_line","objective":"Spring sale","variant_count":3,"tenant_id":"t-1"}`)
	require.NoError(t, err)
	assert.Equal(t, models.TaskSubjectLine, input.TaskKind)
	assert.Equal(t, 3, input.VariantCount)
	assert.Equal(t, "t-1", input.TenantID)

	_, err = h.parseInput(`{"objective":"missing kind"}`)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	_, err = h.parseInput(`not json`)
	assert.Error(t, err)
}

func TestExecute_Success(t *testing.T) {
	gen := &fakeGenerator{result: &models.GenerationResult{
		RunID:      "run-7",
		Status:     models.RunSucceeded,
		Strategy:   models.StrategyStaged,
		Variants:   []models.Variant{models.NewVariant("a", models.FormatText), models.NewVariant("b", models.FormatText)},
		ModelsUsed: []string{"claude", "gpt"},
		Confidence: 0.7,
	}}
	tenants := &fakeTenants{}
	h := newHandler(t, gen, tenants)

	out, err := h.Execute(context.Background(), &Input{models.GenerationRequest{
		TenantID: "t-1", TaskKind: models.TaskCTA, Objective: "Shop now",
	}})

	require.NoError(t, err)
	assert.Equal(t, "run-7", out.RunID)
	assert.Equal(t, "a", out.Content)
	assert.Equal(t, []string{"a", "b"}, out.Variations)
	assert.Equal(t, "graph", out.FrameworkUsed)
	assert.Equal(t, "gpt", out.ModelUsed)
	assert.Equal(t, 1, tenants.claims)
	require.Len(t, gen.got, 1)
	assert.Equal(t, "warm", gen.got[0].Brand.Voice)
}

func TestExecute_Errors(t *testing.T) {
	t.Run("tenant rejected", func(t *testing.T) {
		gen := &fakeGenerator{}
		h := newHandler(t, gen, &fakeTenants{prepareErr: errors.NewQuotaExceededError("limit")})

		_, err := h.Execute(context.Background(), &Input{models.GenerationRequest{TenantID: "t-1"}})
		assert.True(t, stderrors.Is(err, errors.ErrQuotaExceeded))
		assert.Empty(t, gen.got)
	})

	t.Run("generation failed", func(t *testing.T) {
		tenants := &fakeTenants{}
		h := newHandler(t, &fakeGenerator{err: errors.NewGenerationFailedError("draft", nil)}, tenants)

		_, err := h.Execute(context.Background(), &Input{models.GenerationRequest{TenantID: "t-1"}})
		assert.True(t, stderrors.Is(err, errors.ErrGenerationFailed))
		assert.Zero(t, tenants.claims)
	})
}

func TestExecute_CacheHitReleasesClaim(t *testing.T) {
	tenants := &fakeTenants{}
	gen := &fakeGenerator{result: &models.GenerationResult{
		RunID:    "run-8",
		Status:   models.RunSucceeded,
		Variants: []models.Variant{models.NewVariant("a", models.FormatText)},
		CacheHit: true,
	}}
	h := newHandler(t, gen, tenants)

	out, err := h.Execute(context.Background(), &Input{models.GenerationRequest{TenantID: "t-1", TaskKind: models.TaskCTA, Objective: "Shop"}})
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.Zero(t, tenants.claims)
}
