// Package api exposes the orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/validation"
	"campaign-writer/internal/history"
	"campaign-writer/internal/models"
)

const (
	maxBodyBytes = 1 << 20
	tenantHeader = "X-Tenant-ID"
)

// Generator is the orchestration facade.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
	Pending(runID string) (*models.PendingReview, error)
	Approve(ctx context.Context, runID string) (*models.GenerationResult, error)
	Reject(ctx context.Context, runID, reason string) error
	PendingCount() int
}

// Tenants applies tenant brand guidelines to a request and claims quota for
// it. Release hands back a claim when nothing was delivered.
type Tenants interface {
	Prepare(ctx context.Context, req *models.GenerationRequest) error
	Release(ctx context.Context, req models.GenerationRequest)
	Usage(ctx context.Context, tenantID string) (*models.QuotaStatus, error)
}

// History records and lists completed generations.
type History interface {
	Index(ctx context.Context, req models.GenerationRequest, result *models.GenerationResult) error
	MarkReviewed(ctx context.Context, pending *models.PendingReview, decision models.ReviewDecision) error
	Recent(ctx context.Context, tenantID string, size int) ([]history.Record, error)
}

type Options struct {
	Generator   Generator
	Tenants     Tenants
	History     History
	MetricsPath string
	Logger      logger.Logger
}

type Server struct {
	gen         Generator
	tenants     Tenants
	history     History
	metricsPath string
	log         logger.Logger
	now         func() time.Time
}

func NewServer(opts Options) *Server {
	path := opts.MetricsPath
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		gen:         opts.Generator,
		tenants:     opts.Tenants,
		history:     opts.History,
		metricsPath: path,
		log:         logger.Component(opts.Logger, "api"),
		now:         time.Now,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.health)
	r.Handle(s.metricsPath, promhttp.Handler())

	r.Route("/ai", func(r chi.Router) {
		r.Post("/generate", s.generate(""))
		r.Post("/generate-advanced", s.generate(models.ComplexityMedium))
		r.Post("/optimize", s.optimize)
		r.Get("/usage", s.usage)
		r.Get("/history", s.recent)
		r.Route("/reviews/{runID}", func(r chi.Router) {
			r.Get("/", s.pending)
			r.Post("/approve", s.approve)
			r.Post("/reject", s.reject)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	}
	if s.gen != nil {
		status["pending_reviews"] = s.gen.PendingCount()
	}
	writeJSON(w, http.StatusOK, status)
}

// generate handles both generate endpoints. floor raises the request's
// complexity for the advanced endpoint.
func (s *Server) generate(floor models.Complexity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.decodeRequest(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if floor != "" {
			req.Complexity = req.Complexity.AtLeast(floor)
		}

		s.serve(w, r, req)
	}
}

// serve claims quota, runs the generation and records it. The claim is
// released when generation fails or the result came from cache.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, req models.GenerationRequest) {
	ctx := r.Context()
	if s.tenants != nil {
		if err := s.tenants.Prepare(ctx, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	result, err := s.gen.Generate(ctx, req)
	if err != nil {
		if s.tenants != nil {
			s.tenants.Release(context.WithoutCancel(ctx), req)
		}
		s.writeError(w, r, err)
		return
	}
	if s.tenants != nil && result.CacheHit {
		s.tenants.Release(ctx, req)
	}

	if s.history != nil {
		if err := s.history.Index(ctx, req, result); err != nil {
			s.log.Warn("Failed to index generation", map[string]interface{}{"runId": result.RunID, "error": err.Error()})
		}
	}

	status := http.StatusOK
	if result.AwaitingApproval {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result.APIResponse())
}

type optimizeBody struct {
	RequestID               string                  `json:"request_id"`
	TenantID                string                  `json:"tenant_id"`
	Content                 string                  `json:"content"`
	OptimizationGoal        models.OptimizationGoal `json:"optimization_goal"`
	Objective               string                  `json:"objective"`
	AudienceContext         map[string]string       `json:"audience_context"`
	Brand                   models.BrandGuidelines  `json:"brand_guidelines"`
	VariantCount            int                     `json:"variant_count"`
	RequiresBrandGuardrails bool                    `json:"requires_brand_guardrails"`
	RequiresHumanReview     bool                    `json:"requires_human_review"`
	MaxTokens               int                     `json:"max_tokens"`
	StrictURLs              bool                    `json:"strict_urls"`
}

// optimize rewrites existing content toward a goal through the same pipeline.
func (s *Server) optimize(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, validation.ValidateOptimizeRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in optimizeBody
	if err := json.Unmarshal(body, &in); err != nil {
		s.writeError(w, r, errors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	goal := in.OptimizationGoal
	if goal == "" {
		goal = models.GoalEngagement
	}
	objective := in.Objective
	if strings.TrimSpace(objective) == "" {
		objective = goal.Instruction()
	}
	req := models.GenerationRequest{
		RequestID:               in.RequestID,
		TenantID:                in.TenantID,
		TaskKind:                models.TaskContentOptimization,
		Objective:               objective,
		AudienceContext:         in.AudienceContext,
		Brand:                   in.Brand,
		VariantCount:            in.VariantCount,
		RequiresBrandGuardrails: in.RequiresBrandGuardrails,
		RequiresHumanReview:     in.RequiresHumanReview,
		MaxTokens:               in.MaxTokens,
		StrictURLs:              in.StrictURLs,
		SourceContent:           in.Content,
		OptimizationGoal:        goal,
	}
	s.stamp(r, &req)
	s.serve(w, r, req)
}

type usageResponse struct {
	TenantID       string    `json:"tenant_id"`
	Plan           string    `json:"plan"`
	RequestsToday  int       `json:"requests_today"`
	DailyLimit     int       `json:"daily_limit"`
	RemainingDaily int       `json:"remaining_daily"`
	ResetAt        time.Time `json:"reset_at"`
}

// usage reports today's generation count against the tenant's plan.
func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		tenantID = r.URL.Query().Get("tenant_id")
	}
	if tenantID == "" {
		s.writeError(w, r, errors.NewValidationError("tenant is required"))
		return
	}
	if s.tenants == nil {
		s.writeError(w, r, errors.NewInternalError(fmt.Errorf("tenant service is not configured")))
		return
	}

	q, err := s.tenants.Usage(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	y, m, d := s.now().UTC().Date()
	writeJSON(w, http.StatusOK, usageResponse{
		TenantID:       tenantID,
		Plan:           q.Plan,
		RequestsToday:  q.UsedToday,
		DailyLimit:     q.DailyLimit,
		RemainingDaily: q.Remaining(),
		ResetAt:        time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC),
	})
}

// readBody reads a bounded body and checks it against a schema.
func readBody(w http.ResponseWriter, r *http.Request, validate func([]byte) (*validation.ValidationResult, error)) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.NewValidationError("request body could not be read: " + err.Error())
	}

	vr, err := validate(body)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if !vr.Valid {
		return nil, errors.NewValidationError(strings.Join(vr.GetErrorMessages(), "; "))
	}
	return body, nil
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (models.GenerationRequest, error) {
	var req models.GenerationRequest

	body, err := readBody(w, r, validation.ValidateGenerationRequest)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.NewValidationError("invalid request body: " + err.Error())
	}
	s.stamp(r, &req)
	return req, nil
}

// stamp fills tenant, request ID and submission time from the HTTP request.
func (s *Server) stamp(r *http.Request, req *models.GenerationRequest) {
	if req.TenantID == "" {
		req.TenantID = r.Header.Get(tenantHeader)
	}
	if req.RequestID == "" {
		req.RequestID = middleware.GetReqID(r.Context())
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	req.SubmittedAt = s.now().UTC()
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	p, err := s.gen.Pending(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     p.RunID,
		"tenant_id":  p.TenantID,
		"task_kind":  p.Request.TaskKind,
		"created_at": p.CreatedAt,
		"expires_at": p.ExpiresAt,
		"result":     p.Result.APIResponse(),
	})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	p, _ := s.gen.Pending(runID)

	result, err := s.gen.Approve(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.history != nil && p != nil {
		p.Result = result
		if err := s.history.MarkReviewed(r.Context(), p, models.ReviewApproved); err != nil {
			s.log.Warn("Failed to index review decision", map[string]interface{}{"runId": runID, "error": err.Error()})
		}
	}
	writeJSON(w, http.StatusOK, result.APIResponse())
}

type rejectBody struct {
	Reason string `json:"reason"`
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var body rejectBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && err != io.EOF {
			s.writeError(w, r, errors.NewValidationError("invalid reject body: "+err.Error()))
			return
		}
	}

	p, _ := s.gen.Pending(runID)
	if err := s.gen.Reject(r.Context(), runID, body.Reason); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.history != nil && p != nil {
		if err := s.history.MarkReviewed(r.Context(), p, models.ReviewRejected); err != nil {
			s.log.Warn("Failed to index review decision", map[string]interface{}{"runId": runID, "error": err.Error()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"run_id":  runID,
		"status":  models.ReviewRejected,
	})
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"records": []history.Record{}})
		return
	}
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = r.Header.Get(tenantHeader)
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	records, err := s.history.Recent(r.Context(), tenantID, size)
	if err != nil {
		s.writeError(w, r, errors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

type errorBody struct {
	Success bool            `json:"success"`
	Error   errors.APIError `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"path":      r.URL.Path,
		"status":    status,
		"errorCode": string(stdErr.Code),
		"requestId": middleware.GetReqID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		fields["error"] = stdErr.Error()
		s.log.Error("Request failed", fields)
	} else {
		s.log.Info("Request rejected", fields)
	}

	writeJSON(w, status, errorBody{Success: false, Error: errors.ToAPIError(stdErr)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
