// Package gate runs generated candidates through the ordered quality stages:
// style lint, URL check, compliance footer and human review.
package gate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/metrics"
	"campaign-writer/internal/common/observability"
	"campaign-writer/internal/models"
)

const (
	StageStyleLint        = "style_lint"
	StageURLCheck         = "url_check"
	StageComplianceFooter = "compliance_footer"
	StageHumanReview      = "human_review"
)

// Stage inspects and may rewrite or remove the run's candidates.
type Stage interface {
	Name() string
	Apply(req models.GenerationRequest, run *models.WorkflowRun) models.StageResult
}

type Config struct {
	DefaultFooter string
}

type Gate struct {
	stages []Stage
	obs    *observability.Observability
	log    logger.Logger
}

// New builds the gate with its stages in their fixed order. Footer injection
// must follow lint so injected text is never linted away.
func New(cfg Config, obs *observability.Observability, log logger.Logger) *Gate {
	return &Gate{
		stages: []Stage{
			&StyleLint{},
			&URLCheck{},
			&ComplianceFooter{DefaultFooter: cfg.DefaultFooter},
			&HumanReview{},
		},
		obs: obs,
		log: logger.Component(log, "quality-gate"),
	}
}

// Stages lists stage names in execution order.
func (g *Gate) Stages() []string {
	names := make([]string, len(g.stages))
	for i, s := range g.stages {
		names[i] = s.Name()
	}
	return names
}

// Run applies every stage in order. Once a stage fails the remaining stages
// are recorded as skipped.
func (g *Gate) Run(ctx context.Context, req models.GenerationRequest, run *models.WorkflowRun) models.GateReport {
	ctx, span := g.obs.StartSpan(ctx, "quality_gate.run", attribute.String("run.id", run.ID))
	defer span.End()

	report := models.GateReport{Stages: make([]models.StageResult, 0, len(g.stages))}
	failed := false

	for _, stage := range g.stages {
		if failed {
			report.Stages = append(report.Stages, models.StageResult{
				Stage:    stage.Name(),
				Status:   models.StageSkipped,
				Messages: []string{"skipped after earlier stage failure"},
			})
			metrics.GateStageResults.WithLabelValues(stage.Name(), string(models.StageSkipped)).Inc()
			continue
		}

		start := time.Now()
		result := stage.Apply(req, run)
		result.Stage = stage.Name()
		elapsed := time.Since(start)

		run.Findings = append(run.Findings, result.Findings...)
		report.Stages = append(report.Stages, result)

		metrics.GateStageResults.WithLabelValues(result.Stage, string(result.Status)).Inc()
		g.obs.RecordStage(ctx, "quality_gate", result.Stage, string(result.Status), elapsed)

		if result.Status == models.StageFailed {
			failed = true
			g.log.Warn("Quality gate stage failed", map[string]interface{}{
				"runId":    run.ID,
				"stage":    result.Stage,
				"messages": result.Messages,
			})
		}
	}

	return report
}

// keep filters candidates by index.
func keep(candidates []models.Variant, removed map[int]bool) []models.Variant {
	if len(removed) == 0 {
		return candidates
	}
	out := make([]models.Variant, 0, len(candidates))
	for i, c := range candidates {
		if !removed[i] {
			out = append(out, c)
		}
	}
	return out
}

func statusFor(findings []models.Finding, survivors int) models.StageStatus {
	switch {
	case survivors == 0:
		return models.StageFailed
	case len(findings) > 0:
		return models.StageFlagged
	default:
		return models.StagePassed
	}
}
