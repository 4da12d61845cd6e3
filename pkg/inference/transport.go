package inference

import (
	"context"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

// Transport runs an Engine in process, skipping the HTTP hop to /api/chat.
type Transport struct {
	Engine Engine
}

var _ chat.Transport = Transport{}

func (t Transport) SendMessages(ctx context.Context, messages []chat.Message, onFragment func(delta string)) error {
	return t.Engine.RunStream(ctx, messages, func(delta string) error {
		if onFragment != nil {
			onFragment(delta)
		}
		return nil
	})
}
