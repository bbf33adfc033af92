package generatecontent

import "campaign-writer/internal/models"

// Input is the job variables; it carries the generation request fields
// under their API names.
type Input struct {
	models.GenerationRequest
}

type Output struct {
	RunID            string   `json:"runId"`
	Status           string   `json:"status"`
	Content          string   `json:"content"`
	Variations       []string `json:"variations"`
	ConfidenceScore  float64  `json:"confidenceScore"`
	FrameworkUsed    string   `json:"frameworkUsed"`
	ModelUsed        string   `json:"modelUsed"`
	TokensUsed       int      `json:"tokensUsed"`
	CacheHit         bool     `json:"cacheHit"`
	AwaitingApproval bool     `json:"awaitingApproval"`
	Warnings         []string `json:"warnings,omitempty"`
}
