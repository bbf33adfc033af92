package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"campaign-writer/internal/models"
)

func request() models.GenerationRequest {
	return models.GenerationRequest{
		TaskKind:        models.TaskSubjectLine,
		Objective:       "Announce the spring sale",
		AudienceContext: map[string]string{"segment": "returning", "age": "25-34"},
		Brand: models.BrandGuidelines{
			Voice:          "playful",
			CompanyName:    "Acme Outdoors",
			Industry:       "retail",
			ForbiddenWords: []string{"cheap"},
			AllowedDomains: []string{"acme.com"},
		},
		VariantCount: 3,
	}.Normalized()
}

func TestBuild_SystemPromptCarriesBrand(t *testing.T) {
	p := Build(request(), SimpleStage(models.TaskSubjectLine), nil)

	assert.Contains(t, p.System, "Acme Outdoors")
	assert.Contains(t, p.System, "Industry: retail")
	assert.Contains(t, p.System, "Brand Voice: playful")
	assert.Contains(t, p.System, "Never use these words: cheap")
	assert.Contains(t, p.System, "acme.com")
}

func TestBuild_DefaultsWithoutBrand(t *testing.T) {
	req := models.GenerationRequest{TaskKind: models.TaskCTA, Objective: "x"}.Normalized()
	p := Build(req, SimpleStage(req.TaskKind), nil)

	assert.Contains(t, p.System, "for a business")
	assert.Contains(t, p.System, "Professional yet approachable")
	assert.Contains(t, p.User, "Produce exactly 1 candidate.")
	assert.Contains(t, p.User, "at most five words")
}

func TestBuild_AudienceSortedAndConstraints(t *testing.T) {
	p := Build(request(), SimpleStage(models.TaskSubjectLine), nil)

	assert.Less(t, strings.Index(p.User, "- age: 25-34"), strings.Index(p.User, "- segment: returning"))
	assert.Contains(t, p.User, "exactly 3 distinct candidates")
	assert.Contains(t, p.User, "under 60 characters")
	assert.Contains(t, p.User, `"format":"text"`)
}

func TestBuild_IntermediateStageHasNoOutputContract(t *testing.T) {
	stage := Stage{Name: "strategy", Role: "Email Campaign Strategist", Goal: "plan", Instruction: "Outline a strategy."}
	p := Build(request(), stage, nil)

	assert.Contains(t, p.System, "Your role: Email Campaign Strategist.")
	assert.NotContains(t, p.User, "Respond with JSON only")
}

func TestBuild_TranscriptInOrder(t *testing.T) {
	transcript := []models.Artifact{
		{Stage: "strategist", Output: "Lead with urgency."},
		{Stage: "writer", Output: "Spring is here."},
	}
	req := request()
	req.TaskKind = models.TaskBodyCopy
	p := Build(req, Stage{Name: "brand_manager", Instruction: "Review.", Final: true}, transcript)

	first := strings.Index(p.User, "### strategist")
	second := strings.Index(p.User, "### writer")
	assert.True(t, first >= 0 && second > first)
	assert.Contains(t, p.User, `"format":"html"`)
}

func TestBuild_OptimizationCarriesSourceAndGoal(t *testing.T) {
	req := models.GenerationRequest{
		TaskKind:      models.TaskContentOptimization,
		Objective:     "Tighten the spring newsletter",
		SourceContent: "<p>Our spring sale is here and it is big.</p>",
	}.Normalized()
	p := Build(req, SimpleStage(req.TaskKind), nil)

	assert.Contains(t, p.User, "Goal: Optimize this email for maximum engagement and opens.")
	assert.Contains(t, p.User, "Original content:\n<p>Our spring sale is here and it is big.</p>")
	assert.Contains(t, p.User, `"format":"html"`)

	req.OptimizationGoal = models.GoalClarity
	p = Build(req, SimpleStage(req.TaskKind), nil)
	assert.Contains(t, p.User, "Goal: Make this email clearer and more concise.")
}

func TestBuild_IsDeterministic(t *testing.T) {
	a := Build(request(), SimpleStage(models.TaskSubjectLine), nil)
	b := Build(request(), SimpleStage(models.TaskSubjectLine), nil)
	assert.Equal(t, a, b)
}
