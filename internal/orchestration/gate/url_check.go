package gate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"campaign-writer/internal/models"
)

// urlToken matches explicit http(s) links plus scheme-less www.host and
// host.tld/path links.
var urlToken = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]{}]+` +
	`|\bwww\.[a-z0-9-]+(?:\.[a-z0-9-]+)+[^\s"'<>()\[\]{}]*` +
	`|\b[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}/[^\s"'<>()\[\]{}]*`)

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// URLCheck flags links whose host is outside the allowed domains. Strict
// requests drop the offending candidate instead.
type URLCheck struct{}

func (u *URLCheck) Name() string { return StageURLCheck }

func (u *URLCheck) Apply(req models.GenerationRequest, run *models.WorkflowRun) models.StageResult {
	result := models.StageResult{Stage: StageURLCheck}
	allowed := normalizeDomains(req.Brand.AllowedDomains)
	removed := make(map[int]bool)

	for i, c := range run.Candidates {
		for _, raw := range ExtractURLs(c.Text) {
			host, ok := hostOf(raw)
			rule := "unknown_domain"
			if !ok {
				rule = "malformed_url"
			} else if domainAllowed(host, allowed) {
				continue
			}

			result.Findings = append(result.Findings, models.Finding{
				Stage:     StageURLCheck,
				Candidate: i,
				Rule:      rule,
				Value:     raw,
				Removed:   req.StrictURLs,
			})
			result.Messages = append(result.Messages, fmt.Sprintf("candidate %d links to %s outside the allowed domains", i, raw))
			if req.StrictURLs {
				removed[i] = true
				break
			}
		}
	}

	run.Candidates = keep(run.Candidates, removed)
	result.Status = statusFor(result.Findings, len(run.Candidates))
	if result.Status == models.StageFailed {
		result.Messages = append(result.Messages, "no candidate passed the strict URL check")
	}
	return result
}

// ExtractURLs returns the URL-shaped tokens in text with trailing punctuation
// trimmed. Scheme-less tokens are returned as written.
func ExtractURLs(text string) []string {
	matches := urlToken.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, ".,;:!?")
	}
	return matches
}

func hostOf(raw string) (string, bool) {
	if !schemePrefix.MatchString(raw) {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), "."), true
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if i := strings.Index(d, "://"); i >= 0 {
			d = d[i+3:]
		}
		d = strings.TrimPrefix(d, "*.")
		d = strings.Trim(strings.SplitN(d, "/", 2)[0], ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// domainAllowed reports whether host equals or is a subdomain of an allowed domain.
func domainAllowed(host string, allowed []string) bool {
	for _, d := range allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
