// Package tenant resolves tenant brand guidelines and plan quotas. Profiles
// come from Postgres with a short Redis cache; daily usage is a Redis counter.
package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"campaign-writer/internal/common/config"
	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/models"
)

const (
	profileCacheTTL = 5 * time.Minute
	usageKeyTTL     = 48 * time.Hour
)

var (
	ErrTenantNotFound = stderrors.New("TENANT_NOT_FOUND")
	ErrTenantInactive = stderrors.New("TENANT_INACTIVE")
	ErrLookupFailed   = stderrors.New("TENANT_LOOKUP_FAILED")
)

const profileQuery = `SELECT tenant_id, plan, is_active, brand_voice, company_name, industry,
	allowed_words, forbidden_words, allowed_domains, compliance_footer
	FROM tenants WHERE tenant_id = $1`

type Service struct {
	db          *sql.DB
	redis       redis.Cmdable
	prefix      string
	limits      map[string]int
	defaultPlan string
	now         func() time.Time
	log         logger.Logger
}

// NewService builds the tenant service. db and rdb may be nil: without a
// database every tenant gets the default plan; without Redis usage is not
// tracked and quota is left unchecked.
func NewService(db *sql.DB, rdb redis.Cmdable, keyPrefix string, cfg config.TenantConfig, log logger.Logger) *Service {
	limits := make(map[string]int, len(DefaultPlanLimits))
	for plan, n := range DefaultPlanLimits {
		limits[plan] = n
	}
	for plan, n := range cfg.PlanLimits {
		limits[strings.ToLower(plan)] = n
	}
	plan := cfg.DefaultPlan
	if plan == "" {
		plan = "free"
	}
	return &Service{
		db:          db,
		redis:       rdb,
		prefix:      keyPrefix,
		limits:      limits,
		defaultPlan: plan,
		now:         time.Now,
		log:         logger.Component(log, "tenant-service"),
	}
}

// WithClock replaces the clock used to pick the usage day.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PlanLimit returns the daily generation limit for plan; unknown plans get 0.
func (s *Service) PlanLimit(plan string) int {
	return s.limits[strings.ToLower(plan)]
}

// Profile loads the tenant, preferring the Redis copy.
func (s *Service) Profile(ctx context.Context, tenantID string) (*Profile, error) {
	if s.db == nil {
		return &Profile{TenantID: tenantID, Plan: s.defaultPlan, Active: true}, nil
	}

	cacheKey := s.prefix + "tenant:" + tenantID
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var p Profile
			if err := json.Unmarshal([]byte(val), &p); err == nil {
				return &p, nil
			}
		}
	}

	var (
		p                                Profile
		voice, company, industry, footer sql.NullString
		allowedWords, forbidden, domains []string
	)
	err := s.db.QueryRowContext(ctx, profileQuery, tenantID).Scan(
		&p.TenantID, &p.Plan, &p.Active, &voice, &company, &industry,
		pq.Array(&allowedWords), pq.Array(&forbidden), pq.Array(&domains), &footer,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	p.Brand = models.BrandGuidelines{
		Voice:            voice.String,
		CompanyName:      company.String,
		Industry:         industry.String,
		AllowedWords:     allowedWords,
		ForbiddenWords:   forbidden,
		AllowedDomains:   domains,
		ComplianceFooter: footer.String,
	}
	if p.Plan == "" {
		p.Plan = s.defaultPlan
	}

	if s.redis != nil {
		data, _ := json.Marshal(p)
		if err := s.redis.Set(ctx, cacheKey, data, profileCacheTTL).Err(); err != nil {
			s.log.Debug("Failed to cache tenant profile", map[string]interface{}{"tenantId": tenantID, "error": err.Error()})
		}
	}
	return &p, nil
}

func (s *Service) usageKey(tenantID string) string {
	return s.prefix + "usage:" + tenantID + ":" + s.now().UTC().Format("20060102")
}

// Quota reports today's usage against the plan limit.
func (s *Service) Quota(ctx context.Context, tenantID, plan string) (*models.QuotaStatus, error) {
	if s.redis == nil {
		return nil, nil
	}
	status := &models.QuotaStatus{Plan: plan, DailyLimit: s.PlanLimit(plan)}
	used, err := s.redis.Get(ctx, s.usageKey(tenantID)).Int()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	status.UsedToday = used
	return status, nil
}

// RecordUsage counts one generation against today's allowance and returns
// the new count.
func (s *Service) RecordUsage(ctx context.Context, tenantID string) (int64, error) {
	if s.redis == nil {
		return 0, nil
	}
	key := s.usageKey(tenantID)
	n, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("record usage: %w", err)
	}
	if n == 1 {
		if err := s.redis.Expire(ctx, key, usageKeyTTL).Err(); err != nil {
			s.log.Warn("Failed to set usage counter expiry", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return n, nil
}

// Reserve claims one generation from today's allowance. The counter is
// incremented before the limit is compared so concurrent callers cannot
// overshoot it; a claim over the limit is handed back and rejected.
func (s *Service) Reserve(ctx context.Context, tenantID, plan string) (*models.QuotaStatus, error) {
	if s.redis == nil {
		return nil, nil
	}
	limit := s.PlanLimit(plan)
	n, err := s.RecordUsage(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if int(n) > limit {
		s.unclaim(ctx, tenantID)
		return nil, errors.NewQuotaExceededError(fmt.Sprintf("plan %s allows %d generations per day", plan, limit))
	}
	// UsedToday excludes the claim just made.
	return &models.QuotaStatus{Plan: plan, DailyLimit: limit, UsedToday: int(n) - 1}, nil
}

// Release returns the generation claimed by Prepare. Callers release when
// the generation failed or was served from cache.
func (s *Service) Release(ctx context.Context, req models.GenerationRequest) {
	if s.redis == nil || req.TenantID == "" || req.Quota == nil {
		return
	}
	s.unclaim(ctx, req.TenantID)
}

func (s *Service) unclaim(ctx context.Context, tenantID string) {
	key := s.usageKey(tenantID)
	if err := s.redis.Decr(ctx, key).Err(); err != nil {
		s.log.Warn("Failed to release usage claim", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// Usage reports today's usage for the tenant's plan.
func (s *Service) Usage(ctx context.Context, tenantID string) (*models.QuotaStatus, error) {
	profile, err := s.Profile(ctx, tenantID)
	if err != nil {
		if stderrors.Is(err, ErrTenantNotFound) {
			return nil, errors.NewValidationError(fmt.Sprintf("unknown tenant %s", tenantID))
		}
		return nil, errors.NewInternalError(fmt.Errorf("tenant lookup: %w", err))
	}
	quota, err := s.Quota(ctx, tenantID, profile.Plan)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("usage lookup: %w", err))
	}
	if quota == nil {
		quota = &models.QuotaStatus{Plan: profile.Plan, DailyLimit: s.PlanLimit(profile.Plan)}
	}
	return quota, nil
}

// Prepare fills in the tenant's brand guidelines and claims one generation
// from the tenant's quota. Lookup failures fail closed as QuotaExceeded.
// A successful Prepare with a non-nil req.Quota must be paired with Release
// when nothing is delivered.
func (s *Service) Prepare(ctx context.Context, req *models.GenerationRequest) error {
	if req.TenantID == "" {
		return nil
	}

	profile, err := s.Profile(ctx, req.TenantID)
	if err != nil {
		s.log.Warn("Tenant lookup failed", map[string]interface{}{"tenantId": req.TenantID, "error": err.Error()})
		if stderrors.Is(err, ErrTenantNotFound) {
			return errors.NewValidationError(fmt.Sprintf("unknown tenant %s", req.TenantID))
		}
		return errors.NewQuotaExceededError("quota could not be verified")
	}
	if !profile.Active {
		return errors.NewQuotaExceededError(fmt.Sprintf("tenant %s is not active", req.TenantID))
	}

	req.Brand = MergeBrand(profile.Brand, req.Brand)

	quota, err := s.Reserve(ctx, req.TenantID, profile.Plan)
	if err != nil {
		if stderrors.Is(err, errors.ErrQuotaExceeded) {
			return err
		}
		s.log.Warn("Quota reservation failed", map[string]interface{}{"tenantId": req.TenantID, "error": err.Error()})
		return errors.NewQuotaExceededError("quota could not be verified")
	}
	req.Quota = quota
	return nil
}

// MergeBrand overlays request guidelines on the tenant's. Forbidden words
// are the union of both lists.
func MergeBrand(base, override models.BrandGuidelines) models.BrandGuidelines {
	out := base
	if override.Voice != "" {
		out.Voice = override.Voice
	}
	if override.CompanyName != "" {
		out.CompanyName = override.CompanyName
	}
	if override.Industry != "" {
		out.Industry = override.Industry
	}
	if override.ComplianceFooter != "" {
		out.ComplianceFooter = override.ComplianceFooter
	}
	if len(override.AllowedWords) > 0 {
		out.AllowedWords = append([]string(nil), override.AllowedWords...)
	}
	if len(override.AllowedDomains) > 0 {
		out.AllowedDomains = append([]string(nil), override.AllowedDomains...)
	}

	seen := make(map[string]bool)
	var forbidden []string
	for _, w := range append(append([]string(nil), base.ForbiddenWords...), override.ForbiddenWords...) {
		key := strings.ToLower(strings.TrimSpace(w))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		forbidden = append(forbidden, w)
	}
	out.ForbiddenWords = forbidden
	return out
}
