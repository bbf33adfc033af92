package gate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"campaign-writer/internal/models"
	"campaign-writer/internal/orchestration/prompt"
)

// StyleLint removes candidates containing a forbidden word (case-insensitive
// substring match) and flags subject lines that are too long.
type StyleLint struct{}

func (s *StyleLint) Name() string { return StageStyleLint }

func (s *StyleLint) Apply(req models.GenerationRequest, run *models.WorkflowRun) models.StageResult {
	result := models.StageResult{Stage: StageStyleLint}
	forbidden := normalizeWords(req.Brand.ForbiddenWords)
	removed := make(map[int]bool)

	for i, c := range run.Candidates {
		lower := strings.ToLower(c.Text)
		for _, word := range forbidden {
			if strings.Contains(lower, word) {
				removed[i] = true
				result.Findings = append(result.Findings, models.Finding{
					Stage:     StageStyleLint,
					Candidate: i,
					Rule:      "forbidden_word",
					Value:     word,
					Removed:   true,
				})
				result.Messages = append(result.Messages, fmt.Sprintf("candidate %d contains forbidden word %q", i, word))
				break
			}
		}
		if removed[i] || req.TaskKind != models.TaskSubjectLine {
			continue
		}
		if n := utf8.RuneCountInString(c.Text); n > prompt.MaxSubjectLength {
			result.Findings = append(result.Findings, models.Finding{
				Stage:     StageStyleLint,
				Candidate: i,
				Rule:      "subject_too_long",
				Value:     fmt.Sprintf("%d", n),
			})
			result.Messages = append(result.Messages, fmt.Sprintf("candidate %d subject line is %d characters (limit %d)", i, n, prompt.MaxSubjectLength))
		}
	}

	run.Candidates = keep(run.Candidates, removed)
	result.Status = statusFor(result.Findings, len(run.Candidates))
	if result.Status == models.StageFailed {
		result.Messages = append(result.Messages, "no candidate passed style lint")
	}
	return result
}

// normalizeWords lower-cases, trims and drops empty entries.
func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
