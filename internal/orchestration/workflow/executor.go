package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/metrics"
	"campaign-writer/internal/common/observability"
	"campaign-writer/internal/models"
	"campaign-writer/internal/orchestration/llm"
	"campaign-writer/internal/orchestration/prompt"
	"campaign-writer/pkg/registry"
)

// ModelResolver returns the client bound to a model class.
type ModelResolver interface {
	Resolve(class models.ModelClass) (llm.Binding, error)
}

type Config struct {
	CallTimeout            time.Duration
	RetryBackoff           time.Duration
	LowConfidenceThreshold float64
}

func DefaultConfig() Config {
	return Config{
		CallTimeout:            30 * time.Second,
		RetryBackoff:           250 * time.Millisecond,
		LowConfidenceThreshold: 0.4,
	}
}

// Executor runs one strategy to completion. Stages run strictly in order;
// each stage sees the outputs of the stages before it.
type Executor struct {
	models    ModelResolver
	templates *registry.WorkflowRegistry
	cfg       Config
	obs       *observability.Observability
	log       logger.Logger
}

func NewExecutor(resolver ModelResolver, templates *registry.WorkflowRegistry, cfg Config, obs *observability.Observability, log logger.Logger) *Executor {
	if templates == nil {
		templates = registry.Default()
	}
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	return &Executor{
		models:    resolver,
		templates: templates,
		cfg:       cfg,
		obs:       obs,
		log:       logger.Component(log, "workflow-executor"),
	}
}

type step struct {
	stage prompt.Stage
	class models.ModelClass
}

// Execute runs strategy for req. On failure the returned run is marked
// failed and the error is a GenerationFailed wrapping the cause.
func (e *Executor) Execute(ctx context.Context, strategy models.Strategy, req models.GenerationRequest, decision models.RoutingDecision) (*models.WorkflowRun, error) {
	run := &models.WorkflowRun{
		ID:        uuid.NewString(),
		Strategy:  strategy,
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}

	ctx, span := e.obs.StartSpan(ctx, "workflow.execute",
		attribute.String("run.id", run.ID),
		attribute.String("workflow.strategy", string(strategy)),
		attribute.String("task.kind", string(req.TaskKind)),
	)
	defer span.End()

	log := e.log.WithFields(map[string]interface{}{
		"runId":    run.ID,
		"strategy": strategy,
		"taskKind": req.TaskKind,
	})

	steps := e.plan(strategy, req, decision)
	for _, st := range steps {
		// Cancellation is honoured between stages only.
		if err := ctx.Err(); err != nil {
			run.Stage = st.stage.Name
			return e.fail(run, span, st.stage.Name, err)
		}

		artifact, completion, err := e.runStage(ctx, run, st, req, decision)
		if err != nil {
			run.Stage = st.stage.Name
			log.Error("Workflow stage failed", map[string]interface{}{"stage": st.stage.Name, "error": err.Error()})
			return e.fail(run, span, st.stage.Name, err)
		}
		run.Record(artifact)

		if st.stage.Final {
			if err := e.collect(run, completion, req); err != nil {
				return e.fail(run, span, st.stage.Name, err)
			}
			continue
		}
		if strings.TrimSpace(artifact.Output) == "" {
			return e.fail(run, span, st.stage.Name, fmt.Errorf("stage %s produced no output", st.stage.Name))
		}
		if c := completion.Confidence; c != nil && *c < e.cfg.LowConfidenceThreshold {
			run.Warn(fmt.Sprintf("low confidence %.2f at stage %s", *c, st.stage.Name))
		}
	}

	log.Info("Workflow completed", map[string]interface{}{
		"stages":     len(run.Artifacts),
		"candidates": len(run.Candidates),
		"warnings":   len(run.Warnings),
	})
	return run, nil
}

// plan expands a strategy into its ordered steps. The last step produces
// the candidate set.
func (e *Executor) plan(strategy models.Strategy, req models.GenerationRequest, decision models.RoutingDecision) []step {
	var templates []registry.Template
	switch strategy {
	case models.StrategyStaged:
		templates = e.templates.StagedSteps
	case models.StrategyMultiAgent:
		templates = e.templates.AgentRoles
	}
	if len(templates) == 0 {
		return []step{{stage: prompt.SimpleStage(req.TaskKind), class: decision.ModelClass}}
	}

	steps := make([]step, 0, len(templates))
	for i, t := range templates {
		class := decision.ModelClass
		if t.ModelClass != "" && (!t.PinOnlyWithGuardrails || req.RequiresBrandGuardrails) {
			class = models.ModelClass(t.ModelClass)
		}
		st := prompt.Stage{
			Name:        t.ID,
			Goal:        t.Goal,
			Instruction: t.Instruction,
			Final:       i == len(templates)-1,
		}
		if strategy == models.StrategyMultiAgent {
			st.Role = t.DisplayName
		}
		steps = append(steps, step{stage: st, class: class})
	}
	return steps
}

func (e *Executor) runStage(ctx context.Context, run *models.WorkflowRun, st step, req models.GenerationRequest, decision models.RoutingDecision) (models.Artifact, *llm.Completion, error) {
	ctx, span := e.obs.StartSpan(ctx, "workflow.stage",
		attribute.String("stage", st.stage.Name),
		attribute.String("model.class", string(st.class)),
	)
	defer span.End()

	binding, err := e.models.Resolve(st.class)
	if err != nil {
		return models.Artifact{}, nil, errors.NewInternalError(err)
	}
	modelID := binding.ModelID
	if st.class == decision.ModelClass && decision.ModelID != "" {
		modelID = decision.ModelID
	}
	maxTokens := req.MaxTokens
	if binding.MaxTokens > 0 && binding.MaxTokens < maxTokens {
		maxTokens = binding.MaxTokens
	}

	p := prompt.Build(req, st.stage, run.Artifacts)
	inv := llm.Invocation{
		System:      p.System,
		Prompt:      p.User,
		Model:       modelID,
		Temperature: decision.Temperature,
		MaxTokens:   maxTokens,
	}

	start := time.Now()
	completion, attempts, err := e.invoke(ctx, binding.Client, st.class, inv)
	elapsed := time.Since(start)

	status := "succeeded"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.obs.RecordStage(ctx, string(run.Strategy), st.stage.Name, status, elapsed)
	if err != nil {
		return models.Artifact{}, nil, err
	}

	if completion.Model != "" {
		modelID = completion.Model
	}
	metrics.ModelTokens.WithLabelValues(string(st.class)).Add(float64(completion.InputTokens + completion.OutputTokens))

	return models.Artifact{
		Stage:      st.stage.Name,
		ModelClass: st.class,
		ModelID:    modelID,
		Output:     completion.Text,
		Attempts:   attempts,
		Duration:   elapsed,
	}, completion, nil
}

// invoke calls the model detached from caller cancellation, with a per-call
// timeout and one retry for transient provider failures. Errors the client
// did not classify count as provider errors. Cancellation during the backoff
// abandons the retry.
func (e *Executor) invoke(ctx context.Context, client llm.Client, class models.ModelClass, inv llm.Invocation) (*llm.Completion, int, error) {
	detached := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(detached, e.cfg.CallTimeout)
		out, err := client.Invoke(callCtx, inv)
		cancel()

		if err == nil {
			metrics.ModelCalls.WithLabelValues(string(class), "success").Inc()
			return out, attempt, nil
		}

		var stdErr *errors.StandardError
		if !stderrors.As(err, &stdErr) {
			stdErr = errors.NewProviderError(inv.Model, err)
		}
		metrics.ModelCalls.WithLabelValues(string(class), string(stdErr.Code)).Inc()
		if !errors.IsRetryable(stdErr) || attempt > errors.GetRetryCount(stdErr.Code) {
			return nil, attempt, stdErr
		}

		e.log.Warn("Model call failed, retrying", map[string]interface{}{
			"model":   inv.Model,
			"attempt": attempt,
			"code":    stdErr.Code,
		})
		timer := time.NewTimer(e.cfg.RetryBackoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, stdErr
		}
	}
}

// collect parses the final output into candidates and applies the soft
// failure rules.
func (e *Executor) collect(run *models.WorkflowRun, completion *llm.Completion, req models.GenerationRequest) error {
	parsed := Parse(completion.Text, req.TaskKind, e.templates.OutputSchema)
	if len(parsed.Variants) == 0 {
		return fmt.Errorf("no candidates could be parsed from model output")
	}

	if len(parsed.Variants) > req.VariantCount {
		parsed.Variants = parsed.Variants[:req.VariantCount]
	} else if len(parsed.Variants) < req.VariantCount {
		run.Warn(fmt.Sprintf("requested %d variants, model produced %d", req.VariantCount, len(parsed.Variants)))
	}

	confidence := UnreportedConfidence
	switch {
	case parsed.Confidence != nil:
		confidence = *parsed.Confidence
	case completion.Confidence != nil:
		confidence = *completion.Confidence
	}
	if confidence < e.cfg.LowConfidenceThreshold {
		run.Warn(fmt.Sprintf("low confidence %.2f", confidence))
	}
	if !parsed.Structured {
		run.Warn("model output was not structured JSON; candidates were split from text")
	}

	run.Candidates = parsed.Variants
	run.Confidence = confidence
	return nil
}

func (e *Executor) fail(run *models.WorkflowRun, span trace.Span, stage string, cause error) (*models.WorkflowRun, error) {
	run.Fail(cause)
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	return run, errors.NewGenerationFailedError(stage, cause).
		WithMetadata("runId", run.ID).
		WithPartial(run)
}
