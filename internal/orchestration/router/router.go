// Package router maps a generation request to a model class, model
// identifier, temperature and execution strategy. It has no side effects.
package router

import (
	"math"
	"strings"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/models"
	"campaign-writer/internal/orchestration/workflow"
)

const (
	BaseTemperature      = 0.5
	RegulatedTemperature = 0.3
	ExplorationBoost     = 0.3
	MinTemperature       = 0.1
	MaxTemperature       = 0.9
)

// complianceTerms mark brand guidelines as belonging to a regulated context.
var complianceTerms = []string{
	"regulated", "compliance", "hipaa", "finra", "sec", "gdpr", "fda", "pci",
	"ccpa", "sox", "medical", "pharmaceutical", "financial advice", "insurance", "legal",
}

// ModelIDs resolves the configured identifier for a model class.
type ModelIDs interface {
	ModelID(class models.ModelClass) string
}

type Router struct {
	ids ModelIDs
}

func New(ids ModelIDs) *Router {
	return &Router{ids: ids}
}

// Route computes the routing decision for a normalized request.
func (r *Router) Route(req models.GenerationRequest) (models.RoutingDecision, error) {
	if !req.TaskKind.Known() {
		return models.RoutingDecision{}, errors.NewInvalidTaskKindError(string(req.TaskKind))
	}

	class := SelectModel(req)
	risk := req.ContextRisk
	if risk == "" {
		risk = ContextRisk(req.Brand)
	}

	var id string
	if r.ids != nil {
		id = r.ids.ModelID(class)
	}

	return models.RoutingDecision{
		ModelClass:  class,
		ModelID:     id,
		Temperature: Temperature(risk, req.ExperimentPhase, req.TemperatureOverride),
		Strategy:    workflow.Select(req),
		ContextRisk: risk,
	}, nil
}

// SelectModel applies the model rule. Order matters: short-form creative
// tasks never go to the nuanced model, and rewrites of existing content
// always do.
func SelectModel(req models.GenerationRequest) models.ModelClass {
	switch {
	case req.TaskKind.ShortForm():
		return models.ModelCreative
	case req.TaskKind == models.TaskContentOptimization:
		return models.ModelNuanced
	case req.RequiresBrandGuardrails || req.Complexity == models.ComplexityHigh:
		return models.ModelNuanced
	default:
		return models.ModelCreative
	}
}

// Temperature resolves the sampling temperature. An override wins over the
// computed value; both are clamped to [0.1, 0.9] and rounded to two decimals.
func Temperature(risk models.ContextRisk, phase models.ExperimentPhase, override *float64) float64 {
	if override != nil {
		return clamp(*override)
	}
	t := BaseTemperature
	if risk == models.ContextRegulated {
		t = RegulatedTemperature
	}
	if phase == models.PhaseExplore || phase == models.PhaseABTestNew {
		t += ExplorationBoost
	}
	return clamp(t)
}

func clamp(t float64) float64 {
	if math.IsNaN(t) {
		return BaseTemperature
	}
	t = math.Max(MinTemperature, math.Min(MaxTemperature, t))
	return math.Round(t*100) / 100
}

// ContextRisk derives the risk context from brand guidelines.
func ContextRisk(brand models.BrandGuidelines) models.ContextRisk {
	fields := []string{brand.Voice, brand.Industry, brand.ComplianceFooter}
	fields = append(fields, brand.AllowedWords...)
	fields = append(fields, brand.ForbiddenWords...)

	for _, f := range fields {
		if containsTerm(strings.ToLower(f)) {
			return models.ContextRegulated
		}
	}
	return models.ContextStandard
}

// containsTerm matches whole words so "second" does not read as "sec".
func containsTerm(text string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	joined := " " + strings.Join(words, " ") + " "
	for _, term := range complianceTerms {
		if strings.Contains(joined, " "+term+" ") {
			return true
		}
	}
	return false
}
