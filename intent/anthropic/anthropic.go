// Package anthropic implements intent.Sensor using the Anthropic Messages
// API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/intent"
)

// Options configures the Anthropic sensor adapter (model id, max tokens,
// API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Sensor classifies utterances with a Claude model.
type Sensor struct {
	client *anthropic.Client
	opts   Options
}

var _ intent.Sensor = (*Sensor)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   256,
	}
}

// NewSensor creates a Sensor using the official client. An empty APIKey
// falls back to ambient credentials (ANTHROPIC_API_KEY).
func NewSensor(optFns ...func(o *Options)) *Sensor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Sensor{client: &client, opts: opts}
}

// NewSensorFromClient creates a Sensor from an existing client.
func NewSensorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Sensor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Sensor{client: client, opts: opts}
}

// Sense classifies one utterance into a NavigationSignal.
func (s *Sensor) Sense(ctx context.Context, utterance string, activeScenarioIDs []string) (core.NavigationSignal, error) {
	params := anthropic.MessageNewParams{
		Model:       s.opts.Model,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: anthropic.Float(s.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: intent.SystemPrompt(activeScenarioIDs)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(utterance)),
		},
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return core.NavigationSignal{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return core.NavigationSignal{}, fmt.Errorf("no text content returned")
	}
	return intent.ParseClassification(text.String())
}
