package models

import "time"

// PendingReview is a result held for human approval.
type PendingReview struct {
	RunID     string            `json:"run_id"`
	TenantID  string            `json:"tenant_id,omitempty"`
	Request   GenerationRequest `json:"request"`
	Result    *GenerationResult `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ReviewDecision records the outcome of a human review.
type ReviewDecision string

const (
	ReviewApproved ReviewDecision = "approved"
	ReviewRejected ReviewDecision = "rejected"
)
