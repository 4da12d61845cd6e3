// Package inference provides the engines behind the /api/chat endpoint and an
// in-process chat.Transport built on them.
package inference

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

// Engine produces an assistant reply for a conversation, one text delta at a time.
// RunStream returns after the last delta; an error returned by emit aborts the run.
type Engine interface {
	RunStream(ctx context.Context, messages []chat.Message, emit func(delta string) error) error
}

type EngineFunc func(ctx context.Context, messages []chat.Message, emit func(delta string) error) error

func (f EngineFunc) RunStream(ctx context.Context, messages []chat.Message, emit func(delta string) error) error {
	return f(ctx, messages, emit)
}

const (
	EngineOpenAI = "openai"
	EngineEcho   = "echo"
)

// Settings selects and configures an engine.
type Settings struct {
	Engine       string        `mapstructure:"engine" yaml:"engine"`
	APIKey       string        `mapstructure:"openai-api-key" yaml:"openai-api-key,omitempty"`
	BaseURL      string        `mapstructure:"openai-base-url" yaml:"openai-base-url,omitempty"`
	Model        string        `mapstructure:"openai-model" yaml:"openai-model"`
	SystemPrompt string        `mapstructure:"system-prompt" yaml:"system-prompt,omitempty"`
	EchoDelay    time.Duration `mapstructure:"echo-delay" yaml:"echo-delay"`
}

// New builds the engine named in s.
func New(s Settings) (Engine, error) {
	switch s.Engine {
	case EngineOpenAI, "":
		o, err := NewOpenAI(s)
		if err != nil {
			return nil, err
		}
		return o, nil
	case EngineEcho:
		return NewEcho(s.EchoDelay), nil
	default:
		return nil, errors.Errorf("unknown engine %q", s.Engine)
	}
}

// lastUserText returns the text of the most recent user message.
func lastUserText(messages []chat.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}
