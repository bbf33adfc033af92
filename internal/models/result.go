// internal/models/result.go
package models

import (
	"time"
	"unicode/utf8"
)

// Variant is one generated candidate.
type Variant struct {
	Text       string `json:"text"`
	Format     Format `json:"format"`
	TokenCount int    `json:"token_count"`
}

// NewVariant builds a variant with an estimated token count of ceil(chars/4).
func NewVariant(text string, format Format) Variant {
	if format != FormatHTML {
		format = FormatText
	}
	return Variant{Text: text, Format: format, TokenCount: EstimateTokens(text)}
}

func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// GenerationResult is returned by the orchestrator and is what the cache stores.
type GenerationResult struct {
	RunID            string        `json:"run_id"`
	Status           RunStatus     `json:"status"`
	TaskKind         TaskKind      `json:"task_kind"`
	Variants         []Variant     `json:"variants"`
	Report           GateReport    `json:"gate_report"`
	CacheHit         bool          `json:"cache_hit"`
	ModelsUsed       []string      `json:"models_used"`
	Strategy         Strategy      `json:"strategy"`
	Temperature      float64       `json:"temperature"`
	Confidence       float64       `json:"confidence"`
	Warnings         []string      `json:"warnings,omitempty"`
	AwaitingApproval bool          `json:"awaiting_approval"`
	Latency          time.Duration `json:"latency"`
	CreatedAt        time.Time     `json:"created_at"`
}

// TokensUsed sums the variant token estimates.
func (r *GenerationResult) TokensUsed() int {
	total := 0
	for _, v := range r.Variants {
		total += v.TokenCount
	}
	return total
}

// Clone returns a deep copy so cached values are never shared with callers.
func (r *GenerationResult) Clone() *GenerationResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Variants = append([]Variant(nil), r.Variants...)
	out.ModelsUsed = append([]string(nil), r.ModelsUsed...)
	out.Warnings = append([]string(nil), r.Warnings...)
	out.Report.Stages = make([]StageResult, len(r.Report.Stages))
	for i, s := range r.Report.Stages {
		s.Messages = append([]string(nil), s.Messages...)
		s.Findings = append([]Finding(nil), s.Findings...)
		out.Report.Stages[i] = s
	}
	return &out
}

// APIResponse is the JSON body of the generate endpoints.
type APIResponse struct {
	Success          bool       `json:"success"`
	RunID            string     `json:"run_id"`
	Status           RunStatus  `json:"status"`
	Content          string     `json:"content"`
	Variations       []string   `json:"variations"`
	ConfidenceScore  float64    `json:"confidence_score"`
	FrameworkUsed    string     `json:"framework_used"`
	ModelUsed        string     `json:"model_used"`
	ModelsUsed       []string   `json:"models_used"`
	TokensUsed       int        `json:"tokens_used"`
	GenerationTime   float64    `json:"generation_time"`
	CacheHit         bool       `json:"cache_hit"`
	AwaitingApproval bool       `json:"awaiting_approval"`
	Warnings         []string   `json:"warnings,omitempty"`
	GateReport       GateReport `json:"gate_report"`
}

// APIResponse maps the result onto the documented response body.
// model_used names the model that produced the final candidates.
func (r *GenerationResult) APIResponse() APIResponse {
	resp := APIResponse{
		Success:          r.Status == RunSucceeded || r.Status == RunPending,
		RunID:            r.RunID,
		Status:           r.Status,
		Variations:       make([]string, 0, len(r.Variants)),
		ConfidenceScore:  r.Confidence,
		FrameworkUsed:    r.Strategy.Framework(),
		ModelsUsed:       r.ModelsUsed,
		TokensUsed:       r.TokensUsed(),
		GenerationTime:   r.Latency.Seconds(),
		CacheHit:         r.CacheHit,
		AwaitingApproval: r.AwaitingApproval,
		Warnings:         r.Warnings,
		GateReport:       r.Report,
	}
	for _, v := range r.Variants {
		resp.Variations = append(resp.Variations, v.Text)
	}
	if len(r.Variants) > 0 {
		resp.Content = r.Variants[0].Text
	}
	if n := len(r.ModelsUsed); n > 0 {
		resp.ModelUsed = r.ModelsUsed[n-1]
	}
	return resp
}

// CacheEntry is the stored form of a cached result.
type CacheEntry struct {
	Fingerprint    string            `json:"fingerprint"`
	ForbiddenWords []string          `json:"forbidden_words"`
	Result         *GenerationResult `json:"result"`
	StoredAt       time.Time         `json:"stored_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
