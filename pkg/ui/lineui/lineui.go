// Package lineui drives a chat session from line-oriented input, for pipes and
// dumb terminals. Each input line is one submission; the reply is printed as it
// streams and the next line is read once the store is ready again.
package lineui

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

type event struct {
	delta string
	done  bool
	err   string
}

// Run reads in until EOF or ctx ends. Blank lines are skipped.
func Run(ctx context.Context, store *chat.Store, in io.Reader, out io.Writer) error {
	events := make(chan event, 64)
	emit := func(ev event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	var printed int
	var active bool
	store.Observe(func(s chat.Snapshot) {
		// Observer calls are serialized, so printed and active need no lock.
		if s.Status == chat.StatusSubmitted {
			printed, active = 0, true
			return
		}
		if !active {
			return
		}
		if n := len(s.Messages); n > 0 && s.Messages[n-1].Role == chat.RoleAssistant {
			if text := s.Messages[n-1].Text(); len(text) > printed {
				emit(event{delta: text[printed:]})
				printed = len(text)
			}
		}
		switch s.Status {
		case chat.StatusReady:
			active = false
			emit(event{done: true})
		case chat.StatusError:
			active = false
			emit(event{done: true, err: s.LastError})
		}
	})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := scanner.Text()
		err := store.Submit(line)
		if stderrors.Is(err, chat.ErrEmptyInput) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "submit")
		}
		if err := wait(ctx, events, out); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "read input")
}

func wait(ctx context.Context, events <-chan event, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.delta != "" {
				if _, err := io.WriteString(out, ev.delta); err != nil {
					return errors.Wrap(err, "write reply")
				}
			}
			if !ev.done {
				continue
			}
			if ev.err != "" {
				_, err := fmt.Fprintf(out, "\n[error] %s\n", ev.err)
				return errors.Wrap(err, "write error")
			}
			_, err := io.WriteString(out, "\n")
			return errors.Wrap(err, "write reply")
		}
	}
}
