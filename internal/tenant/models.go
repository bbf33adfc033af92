package tenant

import "campaign-writer/internal/models"

// Profile is the tenant record the API layer needs before generating.
type Profile struct {
	TenantID string                 `json:"tenant_id"`
	Plan     string                 `json:"plan"`
	Active   bool                   `json:"active"`
	Brand    models.BrandGuidelines `json:"brand"`
}

// DefaultPlanLimits are the daily AI generation allowances per plan.
var DefaultPlanLimits = map[string]int{
	"free":       50,
	"basic":      200,
	"premium":    1000,
	"enterprise": 10000,
}
