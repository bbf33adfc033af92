package gate

import "campaign-writer/internal/models"

// HumanReview holds the run for external approval when requested.
type HumanReview struct{}

func (h *HumanReview) Name() string { return StageHumanReview }

func (h *HumanReview) Apply(req models.GenerationRequest, run *models.WorkflowRun) models.StageResult {
	if !req.RequiresHumanReview {
		return models.StageResult{Stage: StageHumanReview, Status: models.StagePassed, Messages: []string{"review not requested"}}
	}
	run.Status = models.RunPending
	return models.StageResult{
		Stage:    StageHumanReview,
		Status:   models.StagePassed,
		Messages: []string{"held for human approval"},
	}
}
