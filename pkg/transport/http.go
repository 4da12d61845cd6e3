// Package transport holds chat.Transport implementations that reach a backend chat
// endpoint over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/uistream"
)

// ChatRequest is the body posted to the chat endpoint.
type ChatRequest struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
	Trigger  string         `json:"trigger"`
}

const TriggerSubmitMessage = "submit-message"

// StatusError is returned when the endpoint answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Body)
}

// HTTP streams responses from a chat endpoint speaking the UI message stream.
type HTTP struct {
	endpoint string
	client   *http.Client
	chatID   string
	headers  http.Header
	logger   zerolog.Logger
}

var _ chat.Transport = (*HTTP)(nil)

type HTTPOption func(*HTTP)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTP) {
		if c != nil {
			t.client = c
		}
	}
}

func WithChatID(id string) HTTPOption {
	return func(t *HTTP) {
		if id != "" {
			t.chatID = id
		}
	}
}

func WithHeader(key, value string) HTTPOption {
	return func(t *HTTP) { t.headers.Set(key, value) }
}

func WithLogger(l zerolog.Logger) HTTPOption {
	return func(t *HTTP) { t.logger = l }
}

func NewHTTP(endpoint string, opts ...HTTPOption) *HTTP {
	t := &HTTP{
		endpoint: endpoint,
		client:   http.DefaultClient,
		chatID:   uuid.NewString(),
		headers:  http.Header{},
		logger:   log.With().Str("component", "http-transport").Logger(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *HTTP) Endpoint() string { return t.endpoint }

// SendMessages posts the conversation and forwards text deltas until the stream ends.
func (t *HTTP) SendMessages(ctx context.Context, messages []chat.Message, onFragment func(delta string)) error {
	body, err := json.Marshal(ChatRequest{ID: t.chatID, Messages: messages, Trigger: TriggerSubmitMessage})
	if err != nil {
		return errors.Wrap(err, "encode chat request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	t.logger.Debug().Str("endpoint", t.endpoint).Int("messages", len(messages)).Msg("posting conversation")
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post chat request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	n := 0
	err = uistream.ReadText(resp.Body, func(delta string) {
		n++
		if onFragment != nil {
			onFragment(delta)
		}
	})
	if err != nil {
		return errors.Wrap(err, "read chat stream")
	}
	t.logger.Debug().Int("fragments", n).Msg("chat stream completed")
	return nil
}
