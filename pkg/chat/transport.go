package chat

import "context"

// Transport streams the assistant response for a conversation.
//
// SendMessages must call onFragment sequentially, in the order fragments are
// produced, and return only after the stream ended. A nil return marks a completed
// response; any error marks a failed one.
type Transport interface {
	SendMessages(ctx context.Context, messages []Message, onFragment func(delta string)) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, messages []Message, onFragment func(delta string)) error

func (f TransportFunc) SendMessages(ctx context.Context, messages []Message, onFragment func(delta string)) error {
	return f(ctx, messages, onFragment)
}
