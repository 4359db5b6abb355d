// Package claude implements chat.Provider on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/intake/internal/chat"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-20250514"

// Config holds the provider settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // optional, for proxies and tests
	MaxTokens   int64
	Temperature float64
	MaxRetries  int
}

// Client streams chat completions from Claude.
type Client struct {
	sdk         anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// New creates a new Claude client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude: API key is required")
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
		sdk:         anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name implements chat.Provider.
func (c *Client) Name() string { return "claude" }

// Model implements chat.Provider.
func (c *Client) Model() string { return c.model }

// Stream implements chat.Provider. System messages become the top-level system
// parameter; the Messages API has no system role.
func (c *Client) Stream(ctx context.Context, msgs []chat.Message, sink chat.Sink) (chat.Usage, error) {
	system, convo := toSDKMessages(msgs)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    convo,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var usage chat.Usage
	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			usage.InputTokens = ev.Message.Usage.InputTokens
		case anthropic.ContentBlockDeltaEvent:
			if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				if err := sink(d.Text); err != nil {
					return usage, err
				}
			}
		case anthropic.MessageDeltaEvent:
			usage.OutputTokens = ev.Usage.OutputTokens
		}
	}
	if err := stream.Err(); err != nil {
		return usage, fmt.Errorf("claude stream: %w", err)
	}
	return usage, nil
}

// toSDKMessages splits out system content and converts the remaining turns.
func toSDKMessages(msgs []chat.Message) (string, []anthropic.MessageParam) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			system = append(system, m.Content)
		case chat.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(system, "\n\n"), out
}
