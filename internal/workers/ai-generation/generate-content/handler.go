package generatecontent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/validation"
	"campaign-writer/internal/models"
)

const (
	TaskType = "generate-email-content"
)

type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// Tenants claims quota in Prepare; Release hands the claim back.
type Tenants interface {
	Prepare(ctx context.Context, req *models.GenerationRequest) error
	Release(ctx context.Context, req models.GenerationRequest)
}

type Handler struct {
	config       *Config
	generator    Generator
	tenants      Tenants
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker. tenants may be nil.
func NewHandler(config *Config, generator Generator, tenants Tenants, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		generator:    generator,
		tenants:      tenants,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}
	if input.RequestID == "" {
		input.RequestID = fmt.Sprintf("job-%d", job.Key)
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	vr, err := validation.ValidateGenerationRequest([]byte(variables))
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if !vr.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("%v", vr.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute runs one generation for the job input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req := input.GenerationRequest

	if h.tenants != nil {
		if err := h.tenants.Prepare(ctx, &req); err != nil {
			return nil, err
		}
	}

	result, err := h.generator.Generate(ctx, req)
	if err != nil {
		if h.tenants != nil {
			h.tenants.Release(context.WithoutCancel(ctx), req)
		}
		return nil, err
	}
	if h.tenants != nil && result.CacheHit {
		h.tenants.Release(ctx, req)
	}

	resp := result.APIResponse()
	h.logger.Info("generation completed", map[string]interface{}{
		"runId":     resp.RunID,
		"framework": resp.FrameworkUsed,
		"variants":  len(resp.Variations),
		"cacheHit":  resp.CacheHit,
	})

	return &Output{
		RunID:            resp.RunID,
		Status:           string(resp.Status),
		Content:          resp.Content,
		Variations:       resp.Variations,
		ConfidenceScore:  resp.ConfidenceScore,
		FrameworkUsed:    resp.FrameworkUsed,
		ModelUsed:        resp.ModelUsed,
		TokensUsed:       resp.TokensUsed,
		CacheHit:         resp.CacheHit,
		AwaitingApproval: resp.AwaitingApproval,
		Warnings:         resp.Warnings,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
