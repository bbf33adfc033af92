// internal/models/generation.go
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type TaskKind string

const (
	TaskSubjectLine      TaskKind = "subject_line"
	TaskCTA              TaskKind = "cta"
	TaskShortVariant     TaskKind = "short_variant"
	TaskBodyCopy         TaskKind = "body_copy"
	TaskBrandAlignment   TaskKind = "brand_alignment"
	TaskCampaignStrategy TaskKind = "campaign_strategy"

	// TaskContentOptimization rewrites SourceContent toward an OptimizationGoal.
	TaskContentOptimization TaskKind = "content_optimization"
)

// Known reports whether k is one of the routable task kinds.
func (k TaskKind) Known() bool {
	switch k {
	case TaskSubjectLine, TaskCTA, TaskShortVariant, TaskBodyCopy, TaskBrandAlignment, TaskCampaignStrategy,
		TaskContentOptimization:
		return true
	}
	return false
}

// ShortForm reports whether k produces one-line candidates.
func (k TaskKind) ShortForm() bool {
	return k == TaskSubjectLine || k == TaskCTA || k == TaskShortVariant
}

type OptimizationGoal string

const (
	GoalEngagement OptimizationGoal = "engagement"
	GoalConversion OptimizationGoal = "conversion"
	GoalClarity    OptimizationGoal = "clarity"
	GoalTone       OptimizationGoal = "tone"
)

var goalInstructions = map[OptimizationGoal]string{
	GoalEngagement: "Optimize this email for maximum engagement and opens",
	GoalConversion: "Optimize this email for conversion and click-through rates",
	GoalClarity:    "Make this email clearer and more concise",
	GoalTone:       "Adjust the tone to be more professional and brand-appropriate",
}

// Known reports whether g is a supported optimization goal.
func (g OptimizationGoal) Known() bool {
	_, ok := goalInstructions[g]
	return ok
}

// Instruction is the rewrite instruction for g; unknown goals get engagement's.
func (g OptimizationGoal) Instruction() string {
	if s, ok := goalInstructions[g]; ok {
		return s
	}
	return goalInstructions[GoalEngagement]
}

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

func (c Complexity) rank() int {
	switch c {
	case ComplexityMedium:
		return 1
	case ComplexityHigh:
		return 2
	}
	return 0
}

// AtLeast returns the higher of c and floor.
func (c Complexity) AtLeast(floor Complexity) Complexity {
	if c.rank() < floor.rank() {
		return floor
	}
	return c
}

type ContextRisk string

const (
	ContextStandard  ContextRisk = "standard"
	ContextRegulated ContextRisk = "regulated"
)

type ExperimentPhase string

const (
	PhaseExploit   ExperimentPhase = "exploit"
	PhaseExplore   ExperimentPhase = "explore"
	PhaseABTestNew ExperimentPhase = "ab_test_new"
)

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

const (
	DefaultVariantCount = 1
	MaxVariantCount     = 10
	DefaultMaxTokens    = 1000
	MaxOutputTokens     = 4000
)

// BrandGuidelines constrain voice and vocabulary for one tenant.
type BrandGuidelines struct {
	Voice            string   `json:"voice,omitempty"`
	CompanyName      string   `json:"company_name,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	AllowedWords     []string `json:"allowed_words,omitempty"`
	ForbiddenWords   []string `json:"forbidden_words,omitempty"`
	AllowedDomains   []string `json:"allowed_domains,omitempty"`
	ComplianceFooter string   `json:"compliance_footer,omitempty"`
}

// QuotaStatus is the result of the caller's daily quota check.
type QuotaStatus struct {
	Plan       string `json:"plan,omitempty"`
	DailyLimit int    `json:"daily_limit"`
	UsedToday  int    `json:"used_today"`
}

// Exhausted reports whether no generations remain today. A non-positive
// limit counts as exhausted.
func (q QuotaStatus) Exhausted() bool {
	return q.DailyLimit <= 0 || q.UsedToday >= q.DailyLimit
}

// Remaining returns how many generations are left today.
func (q QuotaStatus) Remaining() int {
	if q.Exhausted() {
		return 0
	}
	return q.DailyLimit - q.UsedToday
}

// GenerationRequest is the immutable input to one generate call. It is passed
// by value; Normalized returns a defaulted copy.
type GenerationRequest struct {
	RequestID string `json:"request_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`

	TaskKind                TaskKind          `json:"task_kind"`
	Objective               string            `json:"objective"`
	AudienceContext         map[string]string `json:"audience_context,omitempty"`
	Brand                   BrandGuidelines   `json:"brand_guidelines"`
	VariantCount            int               `json:"variant_count,omitempty"`
	Complexity              Complexity        `json:"complexity,omitempty"`
	RequiresBrandGuardrails bool              `json:"requires_brand_guardrails"`
	RequiresHumanReview     bool              `json:"requires_human_review"`
	MaxTokens               int               `json:"max_tokens,omitempty"`
	TemperatureOverride     *float64          `json:"temperature,omitempty"`
	ContextRisk             ContextRisk       `json:"context_risk,omitempty"`
	ExperimentPhase         ExperimentPhase   `json:"experiment_phase,omitempty"`
	StrictURLs              bool              `json:"strict_urls"`

	// SourceContent and OptimizationGoal apply to content_optimization only.
	SourceContent    string           `json:"source_content,omitempty"`
	OptimizationGoal OptimizationGoal `json:"optimization_goal,omitempty"`

	Quota       *QuotaStatus `json:"quota,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at,omitempty"`
}

// Normalized returns a copy with defaults applied. Slices and maps are copied
// so later changes by the caller cannot leak into a running pipeline.
func (r GenerationRequest) Normalized() GenerationRequest {
	out := r
	out.TaskKind = TaskKind(strings.TrimSpace(strings.ToLower(string(r.TaskKind))))
	if out.VariantCount == 0 {
		out.VariantCount = DefaultVariantCount
	}
	if out.Complexity == "" {
		out.Complexity = ComplexityLow
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if out.TaskKind == TaskContentOptimization && out.OptimizationGoal == "" {
		out.OptimizationGoal = GoalEngagement
	}
	if r.AudienceContext != nil {
		out.AudienceContext = make(map[string]string, len(r.AudienceContext))
		for k, v := range r.AudienceContext {
			out.AudienceContext[k] = v
		}
	}
	out.Brand.AllowedWords = append([]string(nil), r.Brand.AllowedWords...)
	out.Brand.ForbiddenWords = append([]string(nil), r.Brand.ForbiddenWords...)
	out.Brand.AllowedDomains = append([]string(nil), r.Brand.AllowedDomains...)
	if r.TemperatureOverride != nil {
		t := *r.TemperatureOverride
		out.TemperatureOverride = &t
	}
	if r.Quota != nil {
		q := *r.Quota
		out.Quota = &q
	}
	return out
}

// Validate checks the request shape. Unknown task kinds are left to routing.
func (r GenerationRequest) Validate() error {
	var problems []string

	if r.TaskKind == "" {
		problems = append(problems, "task_kind is required")
	}
	if strings.TrimSpace(r.Objective) == "" {
		problems = append(problems, "objective is required")
	}
	if r.VariantCount < 1 || r.VariantCount > MaxVariantCount {
		problems = append(problems, fmt.Sprintf("variant_count must be between 1 and %d", MaxVariantCount))
	}
	switch r.Complexity {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
	default:
		problems = append(problems, fmt.Sprintf("complexity %q is not one of low, medium, high", r.Complexity))
	}
	if r.MaxTokens < 1 || r.MaxTokens > MaxOutputTokens {
		problems = append(problems, fmt.Sprintf("max_tokens must be between 1 and %d", MaxOutputTokens))
	}
	if t := r.TemperatureOverride; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		problems = append(problems, "temperature must be a finite number")
	}
	switch r.ContextRisk {
	case "", ContextStandard, ContextRegulated:
	default:
		problems = append(problems, fmt.Sprintf("context_risk %q is not supported", r.ContextRisk))
	}
	switch r.ExperimentPhase {
	case "", PhaseExploit, PhaseExplore, PhaseABTestNew:
	default:
		problems = append(problems, fmt.Sprintf("experiment_phase %q is not supported", r.ExperimentPhase))
	}
	if r.TaskKind == TaskContentOptimization && strings.TrimSpace(r.SourceContent) == "" {
		problems = append(problems, "source_content is required for content_optimization")
	}
	if r.OptimizationGoal != "" && !r.OptimizationGoal.Known() {
		problems = append(problems, fmt.Sprintf("optimization_goal %q is not one of engagement, conversion, clarity, tone", r.OptimizationGoal))
	}
	for k := range r.AudienceContext {
		if strings.TrimSpace(k) == "" {
			problems = append(problems, "audience_context keys must be non-empty")
			break
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
