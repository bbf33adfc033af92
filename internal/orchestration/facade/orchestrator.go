// Package facade is the single entry point for content generation. It wires
// routing, workflow execution, the quality gate and the generation cache.
package facade

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/metrics"
	"campaign-writer/internal/common/observability"
	"campaign-writer/internal/models"
)

type Router interface {
	Route(req models.GenerationRequest) (models.RoutingDecision, error)
}

type Executor interface {
	Execute(ctx context.Context, strategy models.Strategy, req models.GenerationRequest, decision models.RoutingDecision) (*models.WorkflowRun, error)
}

type Gate interface {
	Run(ctx context.Context, req models.GenerationRequest, run *models.WorkflowRun) models.GateReport
}

type Cache interface {
	Lookup(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, bool)
	Store(ctx context.Context, req models.GenerationRequest, result *models.GenerationResult)
}

// ReviewNotifier is told about results parked for human approval.
type ReviewNotifier interface {
	NotifyPending(ctx context.Context, review *models.PendingReview) error
}

type Dependencies struct {
	Router   Router
	Executor Executor
	Gate     Gate
	Cache    Cache
	Notifier ReviewNotifier
}

type Config struct {
	MaxConcurrentGenerations int64
	PendingTTL               time.Duration
}

type Orchestrator struct {
	deps    Dependencies
	sem     *semaphore.Weighted
	pending *pendingStore
	ttl     time.Duration
	obs     *observability.Observability
	log     logger.Logger
	now     func() time.Time
}

func New(deps Dependencies, cfg Config, obs *observability.Observability, log logger.Logger) *Orchestrator {
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 8
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 72 * time.Hour
	}
	o := &Orchestrator{
		deps: deps,
		sem:  semaphore.NewWeighted(cfg.MaxConcurrentGenerations),
		ttl:  cfg.PendingTTL,
		obs:  obs,
		log:  logger.Component(log, "orchestrator"),
		now:  time.Now,
	}
	o.pending = newPendingStore(func() time.Time { return o.now() })
	return o
}

// WithClock replaces the clock used for latency and pending expiry.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Generate runs one request end to end: validate, cache lookup, route,
// execute, gate, then cache the result unless it awaits human review.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	start := o.now()
	req = req.Normalized()

	if err := req.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if req.Quota != nil && req.Quota.Exhausted() {
		return nil, errors.NewQuotaExceededError(fmt.Sprintf("plan %s allows %d generations per day", req.Quota.Plan, req.Quota.DailyLimit))
	}

	ctx, span := o.obs.StartSpan(ctx, "orchestrator.generate",
		attribute.String("task.kind", string(req.TaskKind)),
		attribute.String("tenant.id", req.TenantID),
	)
	defer span.End()

	log := o.log.WithFields(map[string]interface{}{
		"requestId": req.RequestID,
		"tenantId":  req.TenantID,
		"taskKind":  req.TaskKind,
	})

	if o.deps.Cache != nil {
		if cached, ok := o.deps.Cache.Lookup(ctx, req); ok {
			cached.Latency = o.now().Sub(start)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			metrics.GenerationsCompleted.WithLabelValues("cache", string(cached.Status)).Inc()
			log.Info("Served from generation cache", map[string]interface{}{"runId": cached.RunID})
			return cached, nil
		}
	}

	decision, err := o.deps.Router.Route(req)
	if err != nil {
		o.recordError(span, "routing", err)
		return nil, err
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.recordError(span, string(decision.Strategy), err)
		return nil, errors.NewGenerationFailedError("queued", err)
	}
	metrics.GenerationsActive.Inc()
	defer func() {
		metrics.GenerationsActive.Dec()
		o.sem.Release(1)
	}()

	log = log.WithFields(map[string]interface{}{
		"strategy":    decision.Strategy,
		"modelClass":  decision.ModelClass,
		"temperature": decision.Temperature,
	})

	run, err := o.deps.Executor.Execute(ctx, decision.Strategy, req, decision)
	if err != nil {
		o.recordError(span, string(decision.Strategy), err)
		log.Error("Generation failed", map[string]interface{}{"error": err.Error()})
		return nil, o.asGenerationFailed(run, err)
	}

	report := o.deps.Gate.Run(ctx, req, run)
	if failed := report.FailedStage(); failed != nil {
		run.Status = models.RunRejectedByGate
		reason := strings.Join(failed.Messages, "; ")
		gateErr := errors.NewGateRejectedError(failed.Stage, reason).
			WithMetadata("runId", run.ID).
			WithPartial(run)
		o.recordError(span, string(decision.Strategy), gateErr)
		log.Warn("Generation rejected by quality gate", map[string]interface{}{"runId": run.ID, "stage": failed.Stage})
		return nil, gateErr
	}

	awaiting := run.Status == models.RunPending
	if !awaiting {
		run.Status = models.RunSucceeded
	}

	result := &models.GenerationResult{
		RunID:            run.ID,
		Status:           run.Status,
		TaskKind:         req.TaskKind,
		Variants:         run.Candidates,
		Report:           report,
		ModelsUsed:       run.ModelsUsed,
		Strategy:         run.Strategy,
		Temperature:      decision.Temperature,
		Confidence:       run.Confidence,
		Warnings:         run.Warnings,
		AwaitingApproval: awaiting,
		CreatedAt:        o.now().UTC(),
	}
	result.Latency = o.now().Sub(start)

	metrics.GenerationsCompleted.WithLabelValues(string(run.Strategy), string(run.Status)).Inc()
	metrics.GenerationDuration.WithLabelValues(string(run.Strategy)).Observe(result.Latency.Seconds())

	if awaiting {
		o.park(ctx, req, result)
		log.Info("Generation held for human review", map[string]interface{}{"runId": run.ID})
		return result.Clone(), nil
	}

	if o.deps.Cache != nil {
		o.deps.Cache.Store(ctx, req, result)
	}
	log.Info("Generation completed", map[string]interface{}{
		"runId":    run.ID,
		"variants": len(result.Variants),
		"latency":  result.Latency.String(),
	})
	return result, nil
}

func (o *Orchestrator) park(ctx context.Context, req models.GenerationRequest, result *models.GenerationResult) {
	now := o.now()
	review := &models.PendingReview{
		RunID:     result.RunID,
		TenantID:  req.TenantID,
		Request:   req,
		Result:    result.Clone(),
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(o.ttl).UTC(),
	}
	o.pending.put(review)

	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.NotifyPending(ctx, review); err != nil {
		o.log.Warn("Failed to notify reviewers", map[string]interface{}{"runId": result.RunID, "error": err.Error()})
	}
}

// Pending returns the parked review for runID.
func (o *Orchestrator) Pending(runID string) (*models.PendingReview, error) {
	p, ok := o.pending.get(runID)
	if !ok {
		return nil, errors.NewRunNotFoundError(runID)
	}
	out := *p
	out.Result = p.Result.Clone()
	return &out, nil
}

// Approve releases a parked result, caches it and returns it as succeeded.
func (o *Orchestrator) Approve(ctx context.Context, runID string) (*models.GenerationResult, error) {
	p, ok := o.pending.take(runID)
	if !ok {
		return nil, errors.NewRunNotFoundError(runID)
	}

	result := p.Result.Clone()
	result.Status = models.RunSucceeded
	result.AwaitingApproval = false

	if o.deps.Cache != nil {
		o.deps.Cache.Store(ctx, p.Request, result)
	}
	metrics.GenerationsCompleted.WithLabelValues(string(result.Strategy), "approved").Inc()
	o.log.Info("Pending generation approved", map[string]interface{}{"runId": runID})
	return result, nil
}

// Reject discards a parked result.
func (o *Orchestrator) Reject(_ context.Context, runID, reason string) error {
	p, ok := o.pending.take(runID)
	if !ok {
		return errors.NewRunNotFoundError(runID)
	}
	metrics.GenerationsCompleted.WithLabelValues(string(p.Result.Strategy), "rejected").Inc()
	o.log.Info("Pending generation rejected", map[string]interface{}{"runId": runID, "reason": reason})
	return nil
}

// PendingCount reports how many results await review.
func (o *Orchestrator) PendingCount() int {
	return o.pending.len()
}

// asGenerationFailed makes sure executor failures carry the partial run.
func (o *Orchestrator) asGenerationFailed(run *models.WorkflowRun, err error) error {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) && stdErr.Code == errors.ErrCodeGenerationFailed {
		return err
	}
	stage := ""
	if run != nil {
		stage = run.Stage
	}
	wrapped := errors.NewGenerationFailedError(stage, err).WithPartial(run)
	if run != nil {
		wrapped.WithMetadata("runId", run.ID)
	}
	return wrapped
}

func (o *Orchestrator) recordError(span trace.Span, workflow string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.GenerationsFailed.WithLabelValues(workflow, string(errors.Normalize(err).Code)).Inc()
}
