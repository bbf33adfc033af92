package gate

import (
	"fmt"
	"html"
	"strings"

	"campaign-writer/internal/models"
)

// ComplianceFooter appends the unsubscribe notice to candidates that lack
// one. Short-form content (subject lines, CTAs, short variants) is left
// alone. It never fails.
type ComplianceFooter struct {
	DefaultFooter string
}

func (f *ComplianceFooter) Name() string { return StageComplianceFooter }

func (f *ComplianceFooter) Apply(req models.GenerationRequest, run *models.WorkflowRun) models.StageResult {
	result := models.StageResult{Stage: StageComplianceFooter, Status: models.StagePassed}

	if req.TaskKind.ShortForm() {
		result.Messages = []string{"footer not applied to short-form content"}
		return result
	}

	footer := strings.TrimSpace(req.Brand.ComplianceFooter)
	if footer == "" {
		footer = strings.TrimSpace(f.DefaultFooter)
	}
	if footer == "" {
		result.Messages = []string{"no compliance footer configured"}
		return result
	}

	for i, c := range run.Candidates {
		if strings.Contains(strings.ToLower(c.Text), "unsubscribe") {
			continue
		}
		run.Candidates[i] = models.NewVariant(WithFooter(c.Text, c.Format, footer), c.Format)
		result.Findings = append(result.Findings, models.Finding{
			Stage:     StageComplianceFooter,
			Candidate: i,
			Rule:      "footer_appended",
		})
	}
	if n := len(result.Findings); n > 0 {
		result.Messages = []string{fmt.Sprintf("footer appended to %d candidate(s)", n)}
	}
	return result
}

// WithFooter appends footer to text, wrapping it in a paragraph for HTML.
func WithFooter(text string, format models.Format, footer string) string {
	if format == models.FormatHTML {
		return text + "\n<p>" + html.EscapeString(footer) + "</p>"
	}
	return text + "\n\n" + footer
}
