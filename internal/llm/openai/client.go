// Package openai implements chat.Provider on the OpenAI Chat Completions API and
// any server compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/linnemanlabs/intake/internal/chat"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Config holds the provider settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // optional, for OpenAI-compatible servers
	MaxTokens   int64
	Temperature float64
	MaxRetries  int
}

// Client streams chat completions from an OpenAI-compatible endpoint.
type Client struct {
	sdk         openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// New creates a new OpenAI client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = chat.DefaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		sdk:         openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name implements chat.Provider.
func (c *Client) Name() string { return "openai" }

// Model implements chat.Provider.
func (c *Client) Model() string { return c.model }

// Stream implements chat.Provider.
func (c *Client) Stream(ctx context.Context, msgs []chat.Message, sink chat.Sink) (chat.Usage, error) {
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    toSDKMessages(msgs),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	})
	defer stream.Close()

	var usage chat.Usage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if err := sink(chunk.Choices[0].Delta.Content); err != nil {
			return usage, err
		}
	}
	if err := stream.Err(); err != nil {
		return usage, fmt.Errorf("openai stream: %w", err)
	}
	return usage, nil
}

func toSDKMessages(msgs []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
