// Package errors provides the standardized error taxonomy for the generation orchestrator.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTaskKind  ErrorCode = "INVALID_TASK_KIND"
	ErrCodeProviderTimeout  ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderError    ErrorCode = "PROVIDER_ERROR"
	ErrCodeQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeGateRejected     ErrorCode = "GATE_REJECTED"
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrCodeRunNotFound      ErrorCode = "RUN_NOT_FOUND"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	// Partial carries diagnostic state (e.g. a partial workflow run). Never serialized.
	Partial interface{} `json:"-"`
	cause   error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError with the same code, so sentinel comparisons like
// errors.Is(err, ErrQuotaExceeded) work on constructed errors.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithPartial attaches diagnostic state to e.
func (e *StandardError) WithPartial(partial interface{}) *StandardError {
	e.Partial = partial
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = &StandardError{Code: ErrCodeValidation}
	ErrInvalidTaskKind  = &StandardError{Code: ErrCodeInvalidTaskKind}
	ErrProviderTimeout  = &StandardError{Code: ErrCodeProviderTimeout}
	ErrProviderError    = &StandardError{Code: ErrCodeProviderError}
	ErrQuotaExceeded    = &StandardError{Code: ErrCodeQuotaExceeded}
	ErrGateRejected     = &StandardError{Code: ErrCodeGateRejected}
	ErrGenerationFailed = &StandardError{Code: ErrCodeGenerationFailed}
	ErrRunNotFound      = &StandardError{Code: ErrCodeRunNotFound}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable request shape error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Invalid generation request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTaskKindError creates a non-retryable routing error.
func NewInvalidTaskKindError(kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTaskKind,
		Message:   "Unsupported task kind",
		Details:   fmt.Sprintf("taskKind: %s", kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable model-call timeout.
func NewProviderTimeoutError(model string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   "Model provider timeout",
		Details:   fmt.Sprintf("model: %s", model),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewProviderError creates a retryable model-provider failure.
func NewProviderError(model string, err error) *StandardError {
	details := fmt.Sprintf("model: %s", model)
	if err != nil {
		details = fmt.Sprintf("model: %s, error: %s", model, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeProviderError,
		Message:   "Model provider error",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQuotaExceededError creates a non-retryable quota error.
func NewQuotaExceededError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Daily generation quota exhausted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGateRejectedError creates a non-retryable quality-gate rejection naming the stage.
func NewGateRejectedError(stage, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGateRejected,
		Message:   "Content rejected by quality gate",
		Details:   fmt.Sprintf("stage: %s, reason: %s", stage, reason),
		Retryable: false,
		Metadata:  map[string]interface{}{"stage": stage, "reason": reason},
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates the catch-all pipeline failure.
func NewGenerationFailedError(stage string, err error) *StandardError {
	details := fmt.Sprintf("stage: %s", stage)
	if err != nil {
		details = fmt.Sprintf("stage: %s, error: %s", stage, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Content generation failed",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRunNotFoundError is returned when a review action names an unknown run.
func NewRunNotFoundError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunNotFound,
		Message:   "Pending generation run not found",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Policy
// ==========================

// GetRetryCount returns how many in-place retries a code is eligible for.
// Provider failures get exactly one; everything else surfaces immediately.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderError:
		return 1
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsRetryable reports whether err is a StandardError eligible for retry.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable && IsRetryableErrorCode(stdErr.Code)
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PROVIDER"):
		return "PROVIDER"
	case strings.Contains(codeStr, "QUOTA"):
		return "QUOTA"
	case strings.Contains(codeStr, "GATE"):
		return "QUALITY_GATE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "GENERATION"):
		return "PIPELINE"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status the API layer responds with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidTaskKind:
		return http.StatusBadRequest
	case ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrCodeGateRejected:
		return http.StatusUnprocessableEntity
	case ErrCodeRunNotFound:
		return http.StatusNotFound
	case ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeProviderError, ErrCodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
