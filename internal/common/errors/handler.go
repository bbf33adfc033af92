package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// APIError is the structured error body returned to API consumers.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToAPIError converts a StandardError into the public error body. Provider and
// internal failures never expose the underlying error text.
func ToAPIError(stdErr *StandardError) APIError {
	body := APIError{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: map[string]interface{}{},
	}

	switch stdErr.Code {
	case ErrCodeProviderError, ErrCodeProviderTimeout, ErrCodeInternal:
		body.Details["retryable"] = stdErr.Retryable
	case ErrCodeGenerationFailed:
		if stage, ok := stdErr.Metadata["stage"]; ok {
			body.Details["stage"] = stage
		}
		if runID, ok := stdErr.Metadata["runId"]; ok {
			body.Details["runId"] = runID
		}
	default:
		if stdErr.Details != "" {
			body.Details["reason"] = stdErr.Details
		}
		for k, v := range stdErr.Metadata {
			body.Details[k] = v
		}
	}

	if len(body.Details) == 0 {
		body.Details = nil
	}
	return body
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports generation failures back to the workflow engine.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries for transient errors and throws a
// BPMN error for everything else.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	body := ToAPIError(stdErr)

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"message":          stdErr.Message,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	varsJSON, _ := json.Marshal(map[string]interface{}{
		"errorCode":    body.Code,
		"errorMessage": body.Message,
		"errorDetails": body.Details,
		"retryable":    stdErr.Retryable,
	})

	retries := GetRetryCount(stdErr.Code)
	if retries > 0 && job.Retries > 0 {
		if int(job.Retries) < retries {
			retries = int(job.Retries)
		}
		_, _ = client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(int32(retries)).
			ErrorMessage(stdErr.Message).
			Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(body.Code).
		ErrorMessage(body.Message)
	if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}
