// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campaign-writer/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient connection failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 10,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

// Connect creates a Zeebe client and verifies the broker topology, retrying
// transient failures with exponential backoff.
func Connect(ctx context.Context, cfg *ClientConfig, log logger.Logger) (zbc.Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}
	log = logger.Component(log, "camunda")

	var lastErr error
	delay := cfg.RetryConfig.BaseDelay
	for attempt := 0; attempt <= cfg.RetryConfig.MaxRetries; attempt++ {
		client, err := dial(ctx, cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err

		if !isRetryableZeebeError(err) || attempt == cfg.RetryConfig.MaxRetries {
			break
		}

		log.Warn("Zeebe connection failed, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     attempt + 1,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("zeebe connect cancelled: %w", ctx.Err())
		}

		delay *= 2
		if delay > cfg.RetryConfig.MaxDelay {
			delay = cfg.RetryConfig.MaxDelay
		}
	}

	return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, lastErr)
}

func dial(ctx context.Context, cfg *ClientConfig) (zbc.Client, error) {
	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	if _, err := client.NewTopologyCommand().Send(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// isRetryableZeebeError checks if the error is transient and should be retried.
func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
