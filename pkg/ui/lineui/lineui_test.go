package lineui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/inference"
)

func TestRunPrintsStreamedReplies(t *testing.T) {
	store := chat.NewStore(context.Background(), inference.Transport{Engine: inference.NewEcho(0)})
	defer store.Close()

	var out bytes.Buffer
	err := Run(context.Background(), store, strings.NewReader("hello there\n\n   \nsecond\n"), &out)
	require.NoError(t, err)
	require.Equal(t, "You said: hello there\nYou said: second\n", out.String())

	snap := store.Snapshot()
	require.Len(t, snap.Messages, 4)
	require.Equal(t, chat.StatusReady, snap.Status)
}

func TestRunReportsFailuresAndContinues(t *testing.T) {
	calls := 0
	tr := chat.TransportFunc(func(_ context.Context, _ []chat.Message, onFragment func(string)) error {
		calls++
		if calls == 1 {
			onFragment("partial")
			return errors.New("backend down")
		}
		onFragment("ok")
		return nil
	})
	store := chat.NewStore(context.Background(), tr)
	defer store.Close()

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), store, strings.NewReader("one\ntwo\n"), &out))
	require.Contains(t, out.String(), "partial\n[error] ")
	require.Contains(t, out.String(), "backend down")
	require.True(t, strings.HasSuffix(out.String(), "ok\n"))
}

func TestRunEmptyResponse(t *testing.T) {
	tr := chat.TransportFunc(func(context.Context, []chat.Message, func(string)) error { return nil })
	store := chat.NewStore(context.Background(), tr)
	defer store.Close()

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), store, strings.NewReader("hi\n"), &out))
	require.Equal(t, "\n", out.String())
}
