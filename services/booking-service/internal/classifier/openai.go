package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type OpenAIOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int64
}

// OpenAI classifies through the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
	cal    Calendar
}

func NewOpenAI(apiKey string, cal Calendar, optFns ...func(*OpenAIOptions)) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIFromClient(&client, cal, optFns...)
}

func NewOpenAIFromClient(client *openai.Client, cal Calendar, optFns ...func(*OpenAIOptions)) *OpenAI {
	opts := OpenAIOptions{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.1,
		MaxTokens:   300,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAI{client: client, opts: opts, cal: cal}
}

func (c *OpenAI) Classify(ctx context.Context, text string, hint model.Step) (Result, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(text, hint, c.cal.Today())),
		},
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxTokens),
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, errors.New("no choices returned"))
	}
	return Decode(resp.Choices[0].Message.Content, text, c.cal)
}
