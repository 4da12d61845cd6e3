package uistream

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// Writer emits chunks as server-sent events, flushing after each one.
type Writer struct {
	w     io.Writer
	flush func()

	mu         sync.Mutex
	textID     string
	textOpen   bool
	terminated bool
}

// NewWriter prepares an HTTP response for streaming and returns a Writer on it.
func NewWriter(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderName, HeaderValue)

	var flushFn func()
	if f, ok := w.(http.Flusher); ok {
		flushFn = f.Flush
	}
	return &Writer{w: w, flush: flushFn, textID: "text-0"}
}

// NewStreamWriter writes to an arbitrary writer, mostly for tests.
func NewStreamWriter(w io.Writer) *Writer {
	return &Writer{w: w, textID: "text-0"}
}

// Write encodes a single chunk.
func (w *Writer) Write(c Chunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(c)
}

// Start opens the assistant message.
func (w *Writer) Start(messageID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeLocked(Chunk{Type: ChunkStart, MessageID: messageID}); err != nil {
		return err
	}
	return w.writeLocked(Chunk{Type: ChunkStartStep})
}

// TextDelta appends text to the current text part, opening it on first use.
func (w *Writer) TextDelta(delta string) error {
	if delta == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.textOpen {
		if err := w.writeLocked(Chunk{Type: ChunkTextStart, ID: w.textID}); err != nil {
			return err
		}
		w.textOpen = true
	}
	return w.writeLocked(Chunk{Type: ChunkTextDelta, ID: w.textID, Delta: delta})
}

// Finish closes the open text part and the message, then terminates the stream.
func (w *Writer) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.closeTextLocked(); err != nil {
		return err
	}
	if err := w.writeLocked(Chunk{Type: ChunkFinishStep}); err != nil {
		return err
	}
	if err := w.writeLocked(Chunk{Type: ChunkFinish}); err != nil {
		return err
	}
	return w.doneLocked()
}

// Fail reports an error to the client and terminates the stream.
func (w *Writer) Fail(errText string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeLocked(Chunk{Type: ChunkError, ErrorText: errText}); err != nil {
		return err
	}
	return w.doneLocked()
}

func (w *Writer) closeTextLocked() error {
	if !w.textOpen {
		return nil
	}
	w.textOpen = false
	return w.writeLocked(Chunk{Type: ChunkTextEnd, ID: w.textID})
}

func (w *Writer) doneLocked() error {
	if w.terminated {
		return nil
	}
	w.terminated = true
	return w.writeDataLocked([]byte(donePayload))
}

func (w *Writer) writeLocked(c Chunk) error {
	if w.terminated {
		return errors.New("uistream: write after end of stream")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal chunk")
	}
	return w.writeDataLocked(b)
}

func (w *Writer) writeDataLocked(payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	if _, err := w.w.Write(buf); err != nil {
		return errors.Wrap(err, "write chunk")
	}
	if w.flush != nil {
		w.flush()
	}
	return nil
}
