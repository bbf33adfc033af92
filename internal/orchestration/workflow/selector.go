// Package workflow selects and runs the execution strategy for a request.
package workflow

import "campaign-writer/internal/models"

// Select chooses the strategy from declared complexity. Order matters.
func Select(req models.GenerationRequest) models.Strategy {
	switch {
	case req.Complexity == models.ComplexityHigh:
		return models.StrategyMultiAgent
	case req.Complexity == models.ComplexityMedium:
		return models.StrategyStaged
	case req.VariantCount > 1 && req.RequiresBrandGuardrails:
		return models.StrategyStaged
	default:
		return models.StrategySimple
	}
}
