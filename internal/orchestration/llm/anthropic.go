package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 1024

// AnthropicClient calls the Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

func NewAnthropicClient(apiKey, baseURL string, opts ...option.RequestOption) *AnthropicClient {
	all := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)

	client := anthropic.NewClient(all...)
	return &AnthropicClient{client: &client}
}

func (c *AnthropicClient) Provider() string { return "anthropic" }

func (c *AnthropicClient) Invoke(ctx context.Context, inv Invocation) (*Completion, error) {
	maxTokens := inv.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(inv.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(inv.Prompt)),
		},
		Temperature: anthropic.Float(inv.Temperature),
	}
	if inv.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: inv.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, inv.Model, fmt.Errorf("anthropic generate: %w", err))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	return &Completion{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
