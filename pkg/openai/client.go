// Package openai wraps the OpenAI chat completions API for JSON-mode
// requests.
package openai

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

// Client defines the OpenAI operations used by the normalizer.
type Client interface {
	ChatJSON(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a single system+user exchange that must answer in JSON.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// ChatResponse carries the first choice and token usage.
type ChatResponse struct {
	ID           string
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ErrEmptyResponse is returned when the API answers without choices.
var ErrEmptyResponse = eris.New("openai: response has no choices")

type client struct {
	api *openai.Client
}

// NewClient creates a client. An empty baseURL uses the public endpoint.
func NewClient(apiKey, baseURL string) Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &client{api: openai.NewClientWithConfig(cfg)}
}

func (c *client) ChatJSON(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// StatusCode returns the HTTP status carried by an API or transport error,
// or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
