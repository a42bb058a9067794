// Package textgen calls the text-generation service for the two
// transcript transforms: cleaning a raw dictation and applying a
// spoken edit instruction to previously captured text.
package textgen

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"dikto/errs"
)

// Generator sends one system+user prompt pair and returns the response
// content, or empty string when the service returns no content.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type OpenAI struct {
	client openai.Client
	model  string
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI builds a client for any OpenAI-compatible chat completions
// endpoint (Groq, OpenAI).
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAI) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			// Surface the status code in the shared error vocabulary.
			return "", &errs.APIError{Status: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
