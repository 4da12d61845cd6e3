package inference

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

// Echo answers "You said: <last user text>" word by word. It needs no network and
// is used for development and tests.
type Echo struct {
	delay time.Duration
}

func NewEcho(delay time.Duration) *Echo {
	return &Echo{delay: delay}
}

func (e *Echo) RunStream(ctx context.Context, messages []chat.Message, emit func(delta string) error) error {
	reply := "You said: " + lastUserText(messages)
	for _, frag := range splitWords(reply) {
		if e.delay > 0 {
			t := time.NewTimer(e.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	return nil
}

// splitWords cuts s into fragments that each end after a run of spaces, so joining
// them gives back s exactly.
func splitWords(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		j := i
		for j < len(s) && s[j] == ' ' {
			j++
		}
		out = append(out, s[:j])
		s = s[j:]
	}
	return out
}
