package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultMaxTokens bounds a single structured response. The largest
// response the engine requests is the synthesized report.
const defaultMaxTokens = 8192

// AnthropicModel is a Model backed by the Anthropic Messages API.
type AnthropicModel struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicModel builds a model for the given model name, authenticated
// with apiKey.
func NewAnthropicModel(apiKey, model string) *AnthropicModel {
	return &AnthropicModel{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
	}
}

// Name implements Model.
func (m *AnthropicModel) Name() string {
	return string(m.model)
}

// Complete implements Model: one user-turn message, text blocks
// concatenated in order.
func (m *AnthropicModel) Complete(ctx context.Context, promptText string) (*Completion, error) {
	msg, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(promptText)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Completion{
		Text:         sb.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
