package inference

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/weaviate/tiktoken-go"
)

// TokenCounter estimates prompt sizes with the cl100k_base encoding. The encoding
// is loaded on first use; when it cannot be loaded counting is disabled.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter { return &TokenCounter{} }

func (c *TokenCounter) load() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Debug().Err(err).Msg("token counting disabled")
			return
		}
		c.enc = enc
	})
}

// Count returns the number of tokens of text.
func (c *TokenCounter) Count(text string) (int, bool) {
	if c == nil {
		return 0, false
	}
	c.load()
	if c.enc == nil {
		return 0, false
	}
	return len(c.enc.Encode(text, nil, nil)), true
}

// CountMessages sums the content tokens plus a fixed per-message overhead.
func (c *TokenCounter) CountMessages(msgs []openai.ChatCompletionMessage) (int, bool) {
	const perMessage = 4
	total := 0
	for _, m := range msgs {
		n, ok := c.Count(m.Content)
		if !ok {
			return 0, false
		}
		total += n + perMessage
	}
	return total, true
}
