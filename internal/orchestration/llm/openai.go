package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient calls the Responses API.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIClient {
	all := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// retries are owned by the workflow executor
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)

	client := openai.NewClient(all...)
	return &OpenAIClient{client: &client}
}

func (c *OpenAIClient) Provider() string { return "openai" }

func (c *OpenAIClient) Invoke(ctx context.Context, inv Invocation) (*Completion, error) {
	input := make(responses.ResponseInputParam, 0, 2)
	if inv.System != "" {
		input = append(input, responses.ResponseInputItemParamOfMessage(inv.System, responses.EasyInputMessageRoleSystem))
	}
	input = append(input, responses.ResponseInputItemParamOfMessage(inv.Prompt, responses.EasyInputMessageRoleUser))

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(inv.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
		Temperature: openai.Float(inv.Temperature),
	}
	if inv.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(inv.MaxTokens))
	}

	result, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, inv.Model, fmt.Errorf("openai generate: %w", err))
	}

	return &Completion{
		Text:         result.OutputText(),
		Model:        string(result.Model),
		InputTokens:  int(result.Usage.InputTokens),
		OutputTokens: int(result.Usage.OutputTokens),
	}, nil
}
