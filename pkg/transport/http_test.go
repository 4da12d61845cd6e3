package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/uistream"
)

func TestHTTPTransportStreamsFragments(t *testing.T) {
	var (
		got         ChatRequest
		method      string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		sw := uistream.NewWriter(w)
		_ = sw.Start("a1")
		_ = sw.TextDelta("Hel")
		_ = sw.TextDelta("lo")
		_ = sw.Finish()
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, WithChatID("chat-1"))
	var fragments []string
	err := tr.SendMessages(context.Background(), []chat.Message{chat.NewTextMessage("u1", chat.RoleUser, "Hi")}, func(d string) {
		fragments = append(fragments, d)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo"}, fragments)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, "chat-1", got.ID)
	require.Equal(t, TriggerSubmitMessage, got.Trigger)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "Hi", got.Messages[0].Text())
}

func TestHTTPTransportNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTP(srv.URL).SendMessages(context.Background(), nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadGateway, se.StatusCode)
	require.Equal(t, "upstream unavailable", se.Body)
}

func TestHTTPTransportErrorChunkAndAbnormalEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cut" {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = fmt.Fprint(w, "data: {\"type\":\"text-delta\",\"delta\":\"par\"}\n\n")
			return
		}
		sw := uistream.NewWriter(w)
		_ = sw.TextDelta("par")
		_ = sw.Fail("boom")
	}))
	defer srv.Close()

	var fragments []string
	emit := func(d string) { fragments = append(fragments, d) }

	err := NewHTTP(srv.URL+"/fail").SendMessages(context.Background(), nil, emit)
	var se *uistream.StreamError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "boom", se.Text)

	err = NewHTTP(srv.URL+"/cut").SendMessages(context.Background(), nil, emit)
	require.ErrorIs(t, err, uistream.ErrAbnormalEnd)
	require.Equal(t, []string{"par", "par"}, fragments)
}

func TestHTTPTransportDrivesStoreToError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := chat.NewStore(context.Background(), NewHTTP(srv.URL))
	defer s.Close()
	require.NoError(t, s.Submit("Hi"))
	require.Eventually(t, func() bool { return s.Status() == chat.StatusError }, testTimeout, testTick)
	require.ErrorIs(t, s.LastError(), chat.ErrTransportFailure)
}
