// Package prompt assembles model prompts from a generation request.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"campaign-writer/internal/models"
)

var htmlTag = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// MaxSubjectLength is the subject line limit given to models and enforced by the gate.
const MaxSubjectLength = 60

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Stage describes the step or role the prompt is written for.
type Stage struct {
	Name        string
	Role        string
	Goal        string
	Instruction string
	// Final marks the stage whose output is parsed into candidates.
	Final bool
}

var taskDescriptions = map[models.TaskKind]string{
	models.TaskSubjectLine:         "email subject lines",
	models.TaskCTA:                 "call-to-action button or link texts",
	models.TaskShortVariant:        "short email copy variants (one or two sentences each)",
	models.TaskBodyCopy:            "email body copy",
	models.TaskBrandAlignment:      "a brand-aligned rewrite of the objective's content",
	models.TaskCampaignStrategy:    "an email campaign strategy with supporting copy",
	models.TaskContentOptimization: "an optimized rewrite of existing email content",
}

// SimpleStage is the single stage used by the simple strategy.
func SimpleStage(kind models.TaskKind) Stage {
	return Stage{
		Name:        "generate",
		Instruction: fmt.Sprintf("Write %s for the objective above.", describe(kind)),
		Final:       true,
	}
}

func describe(kind models.TaskKind) string {
	if d, ok := taskDescriptions[kind]; ok {
		return d
	}
	return string(kind)
}

// Build renders the prompt for stage. transcript holds the outputs of prior
// stages in execution order.
func Build(req models.GenerationRequest, stage Stage, transcript []models.Artifact) Prompt {
	return Prompt{
		System: systemPrompt(req, stage),
		User:   userPrompt(req, stage, transcript),
	}
}

func systemPrompt(req models.GenerationRequest, stage Stage) string {
	var b strings.Builder
	company := req.Brand.CompanyName
	if company == "" {
		company = "a business"
	}
	fmt.Fprintf(&b, "You are an expert email marketing AI assistant for %s.\n", company)

	if stage.Role != "" {
		fmt.Fprintf(&b, "\nYour role: %s.\n", stage.Role)
		if stage.Goal != "" {
			fmt.Fprintf(&b, "Your goal: %s.\n", stage.Goal)
		}
	}

	b.WriteString("\nBrand Guidelines:\n")
	if req.Brand.CompanyName != "" {
		fmt.Fprintf(&b, "- Company: %s\n", req.Brand.CompanyName)
	}
	if req.Brand.Industry != "" {
		fmt.Fprintf(&b, "- Industry: %s\n", req.Brand.Industry)
	}
	voice := req.Brand.Voice
	if voice == "" {
		voice = "Professional yet approachable"
	}
	fmt.Fprintf(&b, "- Brand Voice: %s\n", voice)
	if len(req.Brand.AllowedWords) > 0 {
		fmt.Fprintf(&b, "- Preferred vocabulary: %s\n", strings.Join(req.Brand.AllowedWords, ", "))
	}
	if len(req.Brand.ForbiddenWords) > 0 {
		fmt.Fprintf(&b, "- Never use these words: %s\n", strings.Join(req.Brand.ForbiddenWords, ", "))
	}
	if len(req.Brand.AllowedDomains) > 0 {
		fmt.Fprintf(&b, "- Only link to these domains: %s\n", strings.Join(req.Brand.AllowedDomains, ", "))
	}

	b.WriteString("\nAlways create content that:\n")
	b.WriteString("1. Aligns with the brand voice\n")
	b.WriteString("2. Drives engagement and conversions\n")
	b.WriteString("3. Follows email marketing best practices\n")
	b.WriteString("4. Is personalized and relevant\n")
	b.WriteString("5. Includes clear calls-to-action\n")
	return b.String()
}

func userPrompt(req models.GenerationRequest, stage Stage, transcript []models.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", describe(req.TaskKind))
	fmt.Fprintf(&b, "Objective: %s\n", req.Objective)
	if req.TaskKind == models.TaskContentOptimization {
		fmt.Fprintf(&b, "Goal: %s.\n", req.OptimizationGoal.Instruction())
		fmt.Fprintf(&b, "\nOriginal content:\n%s\n", strings.TrimSpace(req.SourceContent))
	}

	if len(req.AudienceContext) > 0 {
		keys := make([]string, 0, len(req.AudienceContext))
		for k := range req.AudienceContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nAudience:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, req.AudienceContext[k])
		}
	}

	if len(transcript) > 0 {
		b.WriteString("\nWork so far:\n")
		for _, a := range transcript {
			fmt.Fprintf(&b, "\n### %s\n%s\n", a.Stage, strings.TrimSpace(a.Output))
		}
	}

	fmt.Fprintf(&b, "\nInstructions:\n%s\n", stage.Instruction)

	if stage.Final {
		b.WriteString(outputConstraints(req))
	}
	return b.String()
}

func outputConstraints(req models.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("\nOutput requirements:\n")
	if req.VariantCount == 1 {
		b.WriteString("- Produce exactly 1 candidate.\n")
	} else {
		fmt.Fprintf(&b, "- Produce exactly %d distinct candidates, varying the approach (question, statement, benefit).\n", req.VariantCount)
	}

	format := models.FormatText
	switch req.TaskKind {
	case models.TaskSubjectLine:
		fmt.Fprintf(&b, "- Each subject line must be under %d characters.\n", MaxSubjectLength)
	case models.TaskCTA:
		b.WriteString("- Each call-to-action must be at most five words.\n")
	case models.TaskBodyCopy, models.TaskCampaignStrategy:
		format = models.FormatHTML
		b.WriteString("- Body copy may use simple HTML (p, strong, em, a, ul, li).\n")
	case models.TaskContentOptimization:
		if htmlTag.MatchString(req.SourceContent) {
			format = models.FormatHTML
		}
		b.WriteString("- Keep the original's format, links and key facts; change only what serves the goal.\n")
	}
	fmt.Fprintf(&b, "- Keep the whole answer within %d tokens.\n", req.MaxTokens)
	fmt.Fprintf(&b, "- Respond with JSON only, shaped as {\"variants\":[{\"text\":\"...\",\"format\":\"%s\"}],\"confidence\":0.0}, where confidence is your 0-1 estimate of quality.\n", format)
	return b.String()
}
