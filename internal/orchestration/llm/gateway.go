package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GatewayClient talks to a self-hosted GenAI gateway exposing
// POST {base}/api/ai/generate.
type GatewayClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type gatewayRequest struct {
	Prompt      string                 `json:"prompt"`
	Context     map[string]interface{} `json:"context"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
}

type gatewayResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Sources    []string `json:"sources"`
	Model      string   `json:"model"`
}

type gatewayStatusError struct {
	status int
	body   string
}

func (e *gatewayStatusError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.status, e.body)
}

// NewGatewayClient has no client-side timeout; the caller's context bounds each call.
func NewGatewayClient(baseURL, apiKey string, httpClient *http.Client) *GatewayClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

func (c *GatewayClient) Provider() string { return "gateway" }

func (c *GatewayClient) Invoke(ctx context.Context, inv Invocation) (*Completion, error) {
	body, err := json.Marshal(gatewayRequest{
		Prompt: inv.Prompt,
		Context: map[string]interface{}{
			"system": inv.System,
			"model":  inv.Model,
		},
		MaxTokens:   inv.MaxTokens,
		Temperature: inv.Temperature,
	})
	if err != nil {
		return nil, classify(ctx, inv.Model, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/generate", bytes.NewReader(body))
	if err != nil {
		return nil, classify(ctx, inv.Model, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(ctx, inv.Model, fmt.Errorf("gateway request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classify(ctx, inv.Model, &gatewayStatusError{status: resp.StatusCode, body: string(snippet)})
	}

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classify(ctx, inv.Model, fmt.Errorf("decode error: %w", err))
	}

	if out.Confidence != nil && (*out.Confidence < 0 || *out.Confidence > 1) {
		out.Confidence = nil
	}
	model := out.Model
	if model == "" {
		model = inv.Model
	}

	return &Completion{
		Text:       out.Text,
		Model:      model,
		Confidence: out.Confidence,
	}, nil
}
