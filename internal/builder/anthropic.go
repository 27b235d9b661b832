package builder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBuilder is a reference Builder implementation that sends the
// worker's prompt to Claude and captures the reply text. It is the
// default concrete Builder when no other is configured; the worker
// loop itself only depends on the Builder interface.
type AnthropicBuilder struct {
	client anthropic.Client
	model  anthropic.Model
}

// AnthropicConfig configures the reference builder.
type AnthropicConfig struct {
	// APIKey defaults to the ANTHROPIC_API_KEY environment variable.
	APIKey string
	Model  anthropic.Model
	// SystemPrompt is accepted but not used: NewAnthropicBuilder does not
	// store it, and Build sends only the prompt, as a single user message.
	SystemPrompt string
}

// NewAnthropicBuilder constructs a Builder against the Anthropic API.
func NewAnthropicBuilder(cfg AnthropicConfig) (*AnthropicBuilder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("builder: ANTHROPIC_API_KEY is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &AnthropicBuilder{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (b *AnthropicBuilder) Build(ctx context.Context, prompt string) (string, int64, int64, error) {
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("builder: anthropic call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}

	return out.String(), resp.Usage.InputTokens, resp.Usage.OutputTokens, nil
}
