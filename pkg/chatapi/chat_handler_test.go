package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/transport"
	"github.com/go-go-golems/chatbot/pkg/uistream"
)

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatHandlerStreamsEngineOutput(t *testing.T) {
	h := NewChatHandler(inference.NewEcho(0), zerolog.Nop())
	body, err := json.Marshal(transport.ChatRequest{
		ID:       "c1",
		Messages: []chat.Message{chat.NewTextMessage("u1", chat.RoleUser, "Hi")},
		Trigger:  transport.TriggerSubmitMessage,
	})
	require.NoError(t, err)

	rec := postChat(t, h, string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uistream.HeaderValue, rec.Header().Get(uistream.HeaderName))

	var text strings.Builder
	require.NoError(t, uistream.ReadText(rec.Body, func(d string) { text.WriteString(d) }))
	require.Equal(t, "You said: Hi", text.String())
}

func TestChatHandlerRejectsBadRequests(t *testing.T) {
	h := NewChatHandler(inference.NewEcho(0), zerolog.Nop())

	require.Equal(t, http.StatusBadRequest, postChat(t, h, "{").Code)
	require.Equal(t, http.StatusBadRequest, postChat(t, h, `{"messages":[]}`).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatHandlerReportsEngineFailureInBand(t *testing.T) {
	eng := inference.EngineFunc(func(_ context.Context, _ []chat.Message, emit func(string) error) error {
		if err := emit("partial "); err != nil {
			return err
		}
		return errors.New("upstream 500")
	})
	rec := postChat(t, NewChatHandler(eng, zerolog.Nop()), `{"messages":[{"id":"u","role":"user","parts":[{"type":"text","text":"x"}]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	err := uistream.ReadText(bytes.NewReader(rec.Body.Bytes()), func(d string) { got = append(got, d) })
	var se *uistream.StreamError
	require.ErrorAs(t, err, &se)
	require.Equal(t, []string{"partial "}, got)
	require.NotContains(t, rec.Body.String(), "upstream 500")
}

func TestChatHandlerWithHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(NewChatHandler(inference.NewEcho(0), zerolog.Nop()))
	defer srv.Close()

	var text strings.Builder
	err := transport.NewHTTP(srv.URL).SendMessages(context.Background(),
		[]chat.Message{chat.NewTextMessage("u1", chat.RoleUser, "round trip")},
		func(d string) { text.WriteString(d) })
	require.NoError(t, err)
	require.Equal(t, "You said: round trip", text.String())
}
