package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type AnthropicOptions struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
}

// Anthropic classifies through the Messages API.
type Anthropic struct {
	client *anthropic.Client
	opts   AnthropicOptions
	cal    Calendar
}

func NewAnthropic(apiKey string, cal Calendar, optFns ...func(*AnthropicOptions)) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicFromClient(&client, cal, optFns...)
}

func NewAnthropicFromClient(client *anthropic.Client, cal Calendar, optFns ...func(*AnthropicOptions)) *Anthropic {
	opts := AnthropicOptions{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.1,
		MaxTokens:   300,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Anthropic{client: client, opts: opts, cal: cal}
}

func (c *Anthropic) Classify(ctx context.Context, text string, hint model.Step) (Result, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(text, hint, c.cal.Today()))),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("anthropic classify: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return Decode(sb.String(), text, c.cal)
}
