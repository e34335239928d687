// Package openai implements intent.Sensor using the OpenAI Chat Completions
// API: one non-streaming completion per utterance, constrained to the shared
// JSON classification schema.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/convoworks/scenariomesh/core"
	"github.com/convoworks/scenariomesh/intent"
)

// Options configure the OpenAI sensor adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Sensor classifies utterances with an OpenAI chat model.
type Sensor struct {
	client *openai.Client
	opts   Options
}

var _ intent.Sensor = (*Sensor)(nil)

// NewSensor creates a Sensor using the official client with ambient
// credentials (OPENAI_API_KEY).
func NewSensor(optFns ...func(o *Options)) *Sensor {
	client := openai.NewClient()
	return NewSensorFromClient(&client, optFns...)
}

// NewSensorFromClient creates a Sensor from an existing client.
func NewSensorFromClient(client *openai.Client, optFns ...func(o *Options)) *Sensor {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.0,
		MaxCompletionTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Sensor{client: client, opts: opts}
}

// Sense classifies one utterance into a NavigationSignal.
func (s *Sensor) Sense(ctx context.Context, utterance string, activeScenarioIDs []string) (core.NavigationSignal, error) {
	params := openai.ChatCompletionNewParams{
		Model: s.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(intent.SystemPrompt(activeScenarioIDs)),
			openai.UserMessage(utterance),
		},
		Temperature:         openai.Float(s.opts.Temperature),
		MaxCompletionTokens: openai.Int(s.opts.MaxCompletionTokens),
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.NavigationSignal{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.NavigationSignal{}, fmt.Errorf("no choices returned")
	}
	return intent.ParseClassification(resp.Choices[0].Message.Content)
}
