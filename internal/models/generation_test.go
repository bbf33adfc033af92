package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() GenerationRequest {
	return GenerationRequest{
		TaskKind:  TaskSubjectLine,
		Objective: "Announce the spring sale",
	}.Normalized()
}

func TestNormalized_AppliesDefaults(t *testing.T) {
	req := GenerationRequest{TaskKind: " Subject_Line ", Objective: "x"}.Normalized()

	assert.Equal(t, TaskSubjectLine, req.TaskKind)
	assert.Equal(t, DefaultVariantCount, req.VariantCount)
	assert.Equal(t, ComplexityLow, req.Complexity)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
}

func TestNormalized_CopiesMutableFields(t *testing.T) {
	temp := 0.7
	orig := GenerationRequest{
		TaskKind:            TaskCTA,
		Objective:           "x",
		AudienceContext:     map[string]string{"segment": "vip"},
		Brand:               BrandGuidelines{ForbiddenWords: []string{"cheap"}},
		TemperatureOverride: &temp,
	}
	norm := orig.Normalized()

	orig.AudienceContext["segment"] = "churned"
	orig.Brand.ForbiddenWords[0] = "free"
	temp = 0.1

	assert.Equal(t, "vip", norm.AudienceContext["segment"])
	assert.Equal(t, "cheap", norm.Brand.ForbiddenWords[0])
	assert.Equal(t, 0.7, *norm.TemperatureOverride)
}

func TestValidate(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name    string
		mutate  func(r *GenerationRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(r *GenerationRequest) {}},
		{name: "unknown task kind passes shape check", mutate: func(r *GenerationRequest) { r.TaskKind = "haiku" }},
		{name: "missing task kind", mutate: func(r *GenerationRequest) { r.TaskKind = "" }, wantErr: "task_kind is required"},
		{name: "blank objective", mutate: func(r *GenerationRequest) { r.Objective = "  " }, wantErr: "objective is required"},
		{name: "too many variants", mutate: func(r *GenerationRequest) { r.VariantCount = 11 }, wantErr: "variant_count"},
		{name: "bad complexity", mutate: func(r *GenerationRequest) { r.Complexity = "extreme" }, wantErr: "complexity"},
		{name: "max tokens too high", mutate: func(r *GenerationRequest) { r.MaxTokens = 4001 }, wantErr: "max_tokens"},
		{name: "nan temperature", mutate: func(r *GenerationRequest) { r.TemperatureOverride = &nan }, wantErr: "temperature"},
		{name: "bad context risk", mutate: func(r *GenerationRequest) { r.ContextRisk = "spicy" }, wantErr: "context_risk"},
		{name: "bad phase", mutate: func(r *GenerationRequest) { r.ExperimentPhase = "yolo" }, wantErr: "experiment_phase"},
		{name: "optimization without source", mutate: func(r *GenerationRequest) { r.TaskKind = TaskContentOptimization }, wantErr: "source_content is required"},
		{name: "optimization with source", mutate: func(r *GenerationRequest) {
			r.TaskKind = TaskContentOptimization
			r.SourceContent = "Old copy"
			r.OptimizationGoal = GoalConversion
		}},
		{name: "bad goal", mutate: func(r *GenerationRequest) { r.OptimizationGoal = "virality" }, wantErr: "optimization_goal"},
		{name: "empty audience key", mutate: func(r *GenerationRequest) { r.AudienceContext = map[string]string{"": "x"} }, wantErr: "audience_context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOptimizationGoal(t *testing.T) {
	req := GenerationRequest{TaskKind: TaskContentOptimization, Objective: "x", SourceContent: "y"}.Normalized()
	assert.Equal(t, GoalEngagement, req.OptimizationGoal)
	assert.True(t, TaskContentOptimization.Known())
	assert.False(t, TaskContentOptimization.ShortForm())
	assert.Equal(t, "Make this email clearer and more concise", GoalClarity.Instruction())
	assert.Equal(t, GoalEngagement.Instruction(), OptimizationGoal("other").Instruction())

	other := GenerationRequest{TaskKind: TaskBodyCopy, Objective: "x"}.Normalized()
	assert.Empty(t, other.OptimizationGoal)
}

func TestQuotaStatus(t *testing.T) {
	assert.False(t, QuotaStatus{DailyLimit: 50, UsedToday: 49}.Exhausted())
	assert.True(t, QuotaStatus{DailyLimit: 50, UsedToday: 50}.Exhausted())
	assert.True(t, QuotaStatus{}.Exhausted())
	assert.Equal(t, 3, QuotaStatus{DailyLimit: 10, UsedToday: 7}.Remaining())
	assert.Equal(t, 0, QuotaStatus{DailyLimit: 10, UsedToday: 12}.Remaining())
}

func TestComplexityAtLeast(t *testing.T) {
	assert.Equal(t, ComplexityMedium, ComplexityLow.AtLeast(ComplexityMedium))
	assert.Equal(t, ComplexityHigh, ComplexityHigh.AtLeast(ComplexityMedium))
	assert.Equal(t, ComplexityMedium, ComplexityMedium.AtLeast(ComplexityMedium))
}

func TestNewVariant_TokenEstimate(t *testing.T) {
	assert.Equal(t, 0, NewVariant("", FormatText).TokenCount)
	assert.Equal(t, 1, NewVariant("abcd", FormatText).TokenCount)
	assert.Equal(t, 2, NewVariant("abcde", FormatText).TokenCount)
	assert.Equal(t, 1, NewVariant("héé", FormatText).TokenCount)
	assert.Equal(t, FormatText, NewVariant("x", "markdown").Format)
	assert.Equal(t, FormatHTML, NewVariant("<p>x</p>", FormatHTML).Format)
}

func TestAPIResponse(t *testing.T) {
	res := &GenerationResult{
		RunID:      "run-1",
		Status:     RunSucceeded,
		Variants:   []Variant{NewVariant("Spring is here", FormatText), NewVariant("Bloom into savings", FormatText)},
		ModelsUsed: []string{"gpt-4o", "claude-sonnet"},
		Strategy:   StrategyMultiAgent,
		Confidence: 0.82,
		Latency:    1500 * time.Millisecond,
	}

	resp := res.APIResponse()
	assert.True(t, resp.Success)
	assert.Equal(t, "Spring is here", resp.Content)
	assert.Equal(t, []string{"Spring is here", "Bloom into savings"}, resp.Variations)
	assert.Equal(t, "crew", resp.FrameworkUsed)
	assert.Equal(t, "claude-sonnet", resp.ModelUsed)
	assert.Equal(t, 0.82, resp.ConfidenceScore)
	assert.Equal(t, 1.5, resp.GenerationTime)
	assert.Equal(t, res.TokensUsed(), resp.TokensUsed)
}

func TestStrategyFramework(t *testing.T) {
	assert.Equal(t, "chain", StrategySimple.Framework())
	assert.Equal(t, "graph", StrategyStaged.Framework())
	assert.Equal(t, "crew", StrategyMultiAgent.Framework())
}

func TestClone_IsDeep(t *testing.T) {
	res := &GenerationResult{
		Variants: []Variant{NewVariant("a", FormatText)},
		Report: GateReport{Stages: []StageResult{
			{Stage: "style_lint", Status: StagePassed, Messages: []string{"ok"}},
		}},
	}
	cp := res.Clone()
	cp.Variants[0].Text = "changed"
	cp.Report.Stages[0].Messages[0] = "changed"

	assert.Equal(t, "a", res.Variants[0].Text)
	assert.Equal(t, "ok", res.Report.Stages[0].Messages[0])
}

func TestGateReport(t *testing.T) {
	report := GateReport{Stages: []StageResult{
		{Stage: "style_lint", Status: StagePassed},
		{Stage: "url_check", Status: StageFailed},
		{Stage: "compliance_footer", Status: StageSkipped},
	}}
	assert.False(t, report.Passed())
	require.NotNil(t, report.FailedStage())
	assert.Equal(t, "url_check", report.FailedStage().Stage)

	s, ok := report.Stage("compliance_footer")
	assert.True(t, ok)
	assert.Equal(t, StageSkipped, s.Status)
}

func TestWorkflowRunRecord(t *testing.T) {
	run := &WorkflowRun{}
	run.Record(Artifact{Stage: "strategy", ModelID: "m1", Output: "a"})
	run.Record(Artifact{Stage: "draft", ModelID: "m1", Output: "b"})
	run.Record(Artifact{Stage: "variants", ModelID: "m2", Output: "c"})

	assert.Equal(t, "variants", run.Stage)
	assert.Equal(t, []string{"m1", "m2"}, run.ModelsUsed)
	assert.Equal(t, "c", run.LastOutput())
}
