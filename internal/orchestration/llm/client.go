// Package llm adapts model providers to a single synchronous Invoke call.
package llm

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"campaign-writer/internal/common/errors"
)

// Invocation is one prompt sent to one model.
type Invocation struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completion is the provider's reply.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	// Confidence is set only by providers that report one.
	Confidence *float64
}

// Client is implemented by every provider adapter. Implementations return
// errors already classified as ProviderTimeout or ProviderError.
type Client interface {
	Invoke(ctx context.Context, inv Invocation) (*Completion, error)
	Provider() string
}

// classify maps a raw provider failure onto the error taxonomy.
func classify(ctx context.Context, model string, err error) error {
	if err == nil {
		return nil
	}
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.NewProviderTimeoutError(model, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewProviderTimeoutError(model, err)
	}
	if code := statusCode(err); code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout {
		return errors.NewProviderTimeoutError(model, err)
	}
	return errors.NewProviderError(model, err)
}

func statusCode(err error) int {
	var oaErr *openai.Error
	if stderrors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var anErr *anthropic.Error
	if stderrors.As(err, &anErr) {
		return anErr.StatusCode
	}
	var gwErr *gatewayStatusError
	if stderrors.As(err, &gwErr) {
		return gwErr.status
	}
	return 0
}
