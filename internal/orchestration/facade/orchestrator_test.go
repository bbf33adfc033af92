package facade

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/observability"
	"campaign-writer/internal/models"
	"campaign-writer/internal/orchestration/cache"
	"campaign-writer/internal/orchestration/gate"
	"campaign-writer/internal/orchestration/llm"
	"campaign-writer/internal/orchestration/llm/llmtest"
	"campaign-writer/internal/orchestration/router"
	"campaign-writer/internal/orchestration/workflow"
	"campaign-writer/pkg/registry"
)

const twoSubjects = `{"variants":[{"text":"Spring savings inside"},{"text":"Fresh picks for you"}],"confidence":0.9}`

type recordingNotifier struct {
	mu      sync.Mutex
	reviews []*models.PendingReview
	err     error
}

func (n *recordingNotifier) NotifyPending(_ context.Context, r *models.PendingReview) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reviews = append(n.reviews, r)
	return n.err
}

type harness struct {
	orch     *Orchestrator
	creative llm.Client
	notifier *recordingNotifier
}

func newHarness(t *testing.T, creative llm.Client, cfg Config) *harness {
	t.Helper()
	reg := llm.NewRegistry(map[models.ModelClass]llm.Binding{
		models.ModelCreative: {Client: creative, ModelID: "creative-1"},
		models.ModelNuanced:  {Client: creative, ModelID: "nuanced-1"},
	})
	log := logger.NewTestLogger(t)
	obs := observability.NewNoop()

	wcfg := workflow.DefaultConfig()
	wcfg.RetryBackoff = time.Millisecond

	memory, err := cache.NewMemoryCache(1 << 20)
	require.NoError(t, err)
	t.Cleanup(memory.Close)

	notifier := &recordingNotifier{}
	orch := New(Dependencies{
		Router:   router.New(reg),
		Executor: workflow.NewExecutor(reg, registry.Default(), wcfg, obs, log),
		Gate:     gate.New(gate.Config{DefaultFooter: "Unsubscribe anytime."}, obs, log),
		Cache:    cache.NewTiered(time.Hour, log, memory),
		Notifier: notifier,
	}, cfg, obs, log)
	return &harness{orch: orch, creative: creative, notifier: notifier}
}

func subjectRequest() models.GenerationRequest {
	return models.GenerationRequest{
		RequestID:    "req-1",
		TaskKind:     models.TaskSubjectLine,
		Objective:    "Spring sale",
		VariantCount: 2,
	}
}

func TestGenerate_SuccessThenCacheHit(t *testing.T) {
	client := llmtest.Text(twoSubjects)
	h := newHarness(t, client, Config{})
	ctx := context.Background()

	first, err := h.orch.Generate(ctx, subjectRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, first.Status)
	assert.False(t, first.CacheHit)
	assert.Equal(t, models.StrategySimple, first.Strategy)
	assert.Equal(t, 0.5, first.Temperature)
	assert.Equal(t, []string{"creative-1"}, first.ModelsUsed)
	require.Len(t, first.Variants, 2)
	assert.Equal(t, "Spring savings inside", first.Variants[0].Text)
	assert.True(t, first.Report.Passed())

	again := subjectRequest()
	again.RequestID = "req-2"
	second, err := h.orch.Generate(ctx, again)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Variants, second.Variants)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 1, client.CallCount())
}

func TestGenerate_ValidationError(t *testing.T) {
	client := llmtest.Text(twoSubjects)
	h := newHarness(t, client, Config{})

	req := subjectRequest()
	req.Objective = " "
	_, err := h.orch.Generate(context.Background(), req)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
	assert.Equal(t, 0, client.CallCount())
}

func TestGenerate_InvalidTaskKind(t *testing.T) {
	client := llmtest.Text(twoSubjects)
	h := newHarness(t, client, Config{})

	req := subjectRequest()
	req.TaskKind = "haiku"
	_, err := h.orch.Generate(context.Background(), req)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidTaskKind))
	assert.False(t, errors.IsRetryable(err))
	assert.Equal(t, 0, client.CallCount())
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	client := llmtest.Text(twoSubjects)
	h := newHarness(t, client, Config{})

	req := subjectRequest()
	req.Quota = &models.QuotaStatus{Plan: "free", DailyLimit: 50, UsedToday: 50}
	_, err := h.orch.Generate(context.Background(), req)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrQuotaExceeded))
	assert.Equal(t, 0, client.CallCount())
}

func TestGenerate_HumanReviewFlow(t *testing.T) {
	client := llmtest.Text(twoSubjects)
	h := newHarness(t, client, Config{})
	ctx := context.Background()

	req := subjectRequest()
	req.RequiresHumanReview = true

	pending, err := h.orch.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, pending.Status)
	assert.True(t, pending.AwaitingApproval)
	assert.Equal(t, 1, h.orch.PendingCount())
	require.Len(t, h.notifier.reviews, 1)
	assert.Equal(t, pending.RunID, h.notifier.reviews[0].RunID)

	// Not cached before approval.
	_, err = h.orch.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, client.CallCount())

	parked, err := h.orch.Pending(pending.RunID)
	require.NoError(t, err)
	assert.Equal(t, pending.Variants, parked.Result.Variants)

	approved, err := h.orch.Approve(ctx, pending.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, approved.Status)
	assert.False(t, approved.AwaitingApproval)

	_, err = h.orch.Approve(ctx, pending.RunID)
	assert.True(t, stderrors.Is(err, errors.ErrRunNotFound))

	cached, err := h.orch.Generate(ctx, req)
	require.NoError(t, err)
	assert.True(t, cached.CacheHit)
	assert.Equal(t, pending.RunID, cached.RunID)
	assert.Equal(t, models.RunSucceeded, cached.Status)
	assert.Equal(t, 2, client.CallCount())
}

func TestGenerate_RejectDiscards(t *testing.T) {
	h := newHarness(t, llmtest.Text(twoSubjects), Config{})
	ctx := context.Background()

	req := subjectRequest()
	req.RequiresHumanReview = true
	pending, err := h.orch.Generate(ctx, req)
	require.NoError(t, err)

	require.NoError(t, h.orch.Reject(ctx, pending.RunID, "off brand"))
	_, err = h.orch.Pending(pending.RunID)
	assert.True(t, stderrors.Is(err, errors.ErrRunNotFound))
	assert.True(t, stderrors.Is(h.orch.Reject(ctx, pending.RunID, ""), errors.ErrRunNotFound))
}

func TestPending_Expires(t *testing.T) {
	now := time.Now()
	h := newHarness(t, llmtest.Text(twoSubjects), Config{PendingTTL: time.Hour})
	h.orch.WithClock(func() time.Time { return now })

	req := subjectRequest()
	req.RequiresHumanReview = true
	pending, err := h.orch.Generate(context.Background(), req)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = h.orch.Approve(context.Background(), pending.RunID)
	assert.True(t, stderrors.Is(err, errors.ErrRunNotFound))
}

func TestGenerate_GateRejection(t *testing.T) {
	h := newHarness(t, llmtest.Text(`{"variants":[{"text":"Cheap deals"},{"text":"So cheap"}]}`), Config{})

	req := subjectRequest()
	req.Brand.ForbiddenWords = []string{"cheap"}
	_, err := h.orch.Generate(context.Background(), req)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGateRejected))

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, gate.StageStyleLint, stdErr.Metadata["stage"])
	assert.Contains(t, stdErr.Metadata["reason"], "cheap")

	run, ok := stdErr.Partial.(*models.WorkflowRun)
	require.True(t, ok)
	assert.Equal(t, models.RunRejectedByGate, run.Status)
}

func TestGenerate_ProviderFailureCarriesPartialRun(t *testing.T) {
	client := llmtest.New(llmtest.Reply{Err: errors.NewProviderError("creative-1", stderrors.New("503"))})
	h := newHarness(t, client, Config{})

	_, err := h.orch.Generate(context.Background(), subjectRequest())

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGenerationFailed))
	assert.Equal(t, 2, client.CallCount())

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	run, ok := stdErr.Partial.(*models.WorkflowRun)
	require.True(t, ok)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, run.ID, stdErr.Metadata["runId"])
}

// gaugeClient tracks how many invocations overlap.
type gaugeClient struct {
	inFlight int32
	peak     int32
}

func (g *gaugeClient) Provider() string { return "gauge" }

func (g *gaugeClient) Invoke(_ context.Context, inv llm.Invocation) (*llm.Completion, error) {
	n := atomic.AddInt32(&g.inFlight, 1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if n <= p || atomic.CompareAndSwapInt32(&g.peak, p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&g.inFlight, -1)
	return &llm.Completion{Text: `{"variants":[{"text":"ok"}]}`, Model: inv.Model}, nil
}

func TestGenerate_ConcurrencyIsBounded(t *testing.T) {
	client := &gaugeClient{}
	h := newHarness(t, client, Config{MaxConcurrentGenerations: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := subjectRequest()
			req.VariantCount = 1
			req.AudienceContext = map[string]string{"n": string(rune('a' + i))}
			_, err := h.orch.Generate(context.Background(), req)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&client.peak), int32(2))
}

func TestGenerate_CancelledWhileQueued(t *testing.T) {
	client := llmtest.New(llmtest.Reply{Text: twoSubjects, Delay: 100 * time.Millisecond})
	h := newHarness(t, client, Config{MaxConcurrentGenerations: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.orch.Generate(context.Background(), subjectRequest())
	}()
	defer func() { <-done }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req := subjectRequest()
	req.Objective = "Different objective"
	_, err := h.orch.Generate(ctx, req)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGenerationFailed))
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
}
