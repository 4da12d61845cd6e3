package uistream

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrAbnormalEnd is returned when the stream stops before a finish chunk or [DONE].
var ErrAbnormalEnd = errors.New("uistream: stream ended before completion")

// StreamError is an error chunk sent by the server.
type StreamError struct {
	Text string
}

func (e *StreamError) Error() string {
	if e.Text == "" {
		return "uistream: server reported an error"
	}
	return "uistream: " + e.Text
}

const maxEventSize = 1 << 20

// Read decodes chunks from r and passes them to h in order. It returns nil once the
// stream terminated normally, a *StreamError if the server sent an error chunk,
// ErrAbnormalEnd if r ended early, or the first error returned by h.
func Read(r io.Reader, h func(Chunk) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		data     []string
		finished bool
		streamEr *StreamError
	)

	// dispatch returns true when the stream is terminated.
	dispatch := func() (bool, error) {
		if len(data) == 0 {
			return false, nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		if strings.TrimSpace(payload) == donePayload {
			return true, nil
		}
		c, err := parseChunk(payload)
		if err != nil {
			return false, err
		}
		switch c.Type {
		case ChunkFinish:
			finished = true
		case ChunkError:
			streamEr = &StreamError{Text: c.ErrorText}
		}
		if h != nil {
			if err := h(c); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			done, err := dispatch()
			if err != nil {
				return err
			}
			if done {
				return finalError(streamEr)
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		data = append(data, strings.TrimPrefix(value, " "))
	}
	if err := sc.Err(); err != nil {
		if streamEr != nil {
			return streamEr
		}
		return errors.Wrap(err, "read stream")
	}
	done, err := dispatch()
	if err != nil {
		return err
	}
	if done || finished || streamEr != nil {
		return finalError(streamEr)
	}
	return ErrAbnormalEnd
}

// ReadText forwards the text deltas of a stream to emit, in order.
func ReadText(r io.Reader, emit func(delta string)) error {
	return Read(r, func(c Chunk) error {
		if c.Type == ChunkTextDelta && c.Delta != "" && emit != nil {
			emit(c.Delta)
		}
		return nil
	})
}

func finalError(se *StreamError) error {
	if se != nil {
		return se
	}
	return nil
}

func parseChunk(payload string) (Chunk, error) {
	if !gjson.Valid(payload) {
		return Chunk{}, errors.Errorf("uistream: malformed chunk %q", truncate(payload, 64))
	}
	res := gjson.GetMany(payload, "type", "id", "messageId", "delta", "errorText")
	return Chunk{
		Type:      ChunkType(res[0].String()),
		ID:        res[1].String(),
		MessageID: res[2].String(),
		Delta:     res[3].String(),
		ErrorText: res[4].String(),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
