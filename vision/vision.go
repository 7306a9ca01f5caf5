// Package vision talks to the vision-capable description service.
package vision

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Client describes a sequence of frame URLs and condenses text.
type Client interface {
	Describe(ctx context.Context, instruction string, urls []string) (string, error)
	Summarize(ctx context.Context, instruction, text string) (string, error)
}

type Config struct {
	Credential   string
	BaseURL      string
	Model        string
	SummaryModel string
	MaxTokens    int

	// Timeout bounds each request; zero leaves the client default.
	Timeout time.Duration
}

// OpenAIClient issues one chat completion per call.
type OpenAIClient struct {
	api          *openai.Client
	model        string
	summaryModel string
	maxTokens    int
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.Credential)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = model
	}

	return &OpenAIClient{
		api:          openai.NewClientWithConfig(oc),
		model:        model,
		summaryModel: summaryModel,
		maxTokens:    cfg.MaxTokens,
	}
}

func (c *OpenAIClient) Describe(ctx context.Context, instruction string, urls []string) (string, error) {
	if len(urls) == 0 {
		return "", errors.New("no frame urls to describe")
	}

	parts := make([]openai.ChatMessagePart, len(urls))
	for i, u := range urls {
		parts[i] = openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    u,
				Detail: openai.ImageURLDetailAuto,
			},
		}
	}

	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
}

func (c *OpenAIClient) Summarize(ctx context.Context, instruction, text string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:     c.summaryModel,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("description service returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
