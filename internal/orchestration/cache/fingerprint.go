// Package cache memoizes generation results by request fingerprint in an
// in-process tier backed by Redis.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"campaign-writer/internal/models"
)

// fingerprintInput is the canonical form hashed into a cache key. Field order
// is fixed by the struct; every list is sorted.
type fingerprintInput struct {
	TaskKind       string      `json:"task_kind"`
	Objective      string      `json:"objective"`
	Audience       [][2]string `json:"audience"`
	Voice          string      `json:"voice"`
	CompanyName    string      `json:"company_name"`
	Industry       string      `json:"industry"`
	AllowedWords   []string    `json:"allowed_words"`
	ForbiddenWords []string    `json:"forbidden_words"`
	AllowedDomains []string    `json:"allowed_domains"`
	Footer         string      `json:"footer"`
	VariantCount   int         `json:"variant_count"`
	Complexity     string      `json:"complexity"`
	Guardrails     bool        `json:"guardrails"`
	HumanReview    bool        `json:"human_review"`
	StrictURLs     bool        `json:"strict_urls"`
	MaxTokens      int         `json:"max_tokens"`
	Source         string      `json:"source"`
	Goal           string      `json:"goal"`
}

// Fingerprint returns the hex SHA-256 of the request's canonical form.
// Request ID, tenant, timestamps and quota are not part of it.
func Fingerprint(req models.GenerationRequest) string {
	req = req.Normalized()

	audience := make([][2]string, 0, len(req.AudienceContext))
	for k, v := range req.AudienceContext {
		audience = append(audience, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	sort.Slice(audience, func(i, j int) bool {
		if audience[i][0] != audience[j][0] {
			return audience[i][0] < audience[j][0]
		}
		return audience[i][1] < audience[j][1]
	})

	in := fingerprintInput{
		TaskKind:       string(req.TaskKind),
		Objective:      strings.Join(strings.Fields(req.Objective), " "),
		Audience:       audience,
		Voice:          strings.TrimSpace(req.Brand.Voice),
		CompanyName:    strings.TrimSpace(req.Brand.CompanyName),
		Industry:       strings.TrimSpace(req.Brand.Industry),
		AllowedWords:   NormalizeWords(req.Brand.AllowedWords),
		ForbiddenWords: NormalizeWords(req.Brand.ForbiddenWords),
		AllowedDomains: NormalizeWords(req.Brand.AllowedDomains),
		Footer:         strings.TrimSpace(req.Brand.ComplianceFooter),
		VariantCount:   req.VariantCount,
		Complexity:     string(req.Complexity),
		Guardrails:     req.RequiresBrandGuardrails,
		HumanReview:    req.RequiresHumanReview,
		StrictURLs:     req.StrictURLs,
		MaxTokens:      req.MaxTokens,
		Source:         strings.TrimSpace(req.SourceContent),
		Goal:           string(req.OptimizationGoal),
	}

	// Marshal of this struct cannot fail.
	body, _ := json.Marshal(in)
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// NormalizeWords lower-cases, trims, de-duplicates and sorts a word list.
func NormalizeWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func sameWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
