package inference

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

const DefaultModel = "gpt-4o-mini"

// OpenAI streams chat completions from an OpenAI compatible API.
type OpenAI struct {
	client       *openai.Client
	model        string
	systemPrompt string
	tokens       *TokenCounter
	logger       zerolog.Logger
}

func NewOpenAI(s Settings) (*OpenAI, error) {
	if s.APIKey == "" {
		return nil, errors.New("missing OpenAI API key (set --openai-api-key or CHATBOT_OPENAI_API_KEY, or use --engine echo)")
	}
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	model := s.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: s.SystemPrompt,
		tokens:       NewTokenCounter(),
		logger:       log.With().Str("component", "openai-engine").Str("model", model).Logger(),
	}, nil
}

func (o *OpenAI) RunStream(ctx context.Context, messages []chat.Message, emit func(delta string) error) error {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(o.systemPrompt, messages),
		Stream:   true,
	}
	if n, ok := o.tokens.CountMessages(req.Messages); ok {
		o.logger.Debug().Int("prompt_tokens", n).Int("messages", len(req.Messages)).Msg("starting completion stream")
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return errors.Wrap(err, "create completion stream")
	}
	defer func() { _ = stream.Close() }()

	for {
		resp, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "receive completion chunk")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if d := resp.Choices[0].Delta.Content; d != "" {
			if err := emit(d); err != nil {
				return err
			}
		}
	}
}

// toOpenAIMessages keeps text parts only; messages without text are skipped.
func toOpenAIMessages(systemPrompt string, messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		text := m.Text()
		if text == "" {
			continue
		}
		var role string
		switch m.Role {
		case chat.RoleUser:
			role = openai.ChatMessageRoleUser
		case chat.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case chat.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case chat.RoleTool:
			// tool results need a call id the UI message carries no trace of
			continue
		default:
			continue
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	return out
}
