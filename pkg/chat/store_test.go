package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pendingCall struct {
	messages []Message
	emit     func(string)
	ctx      context.Context
	done     chan error
}

// scriptedTransport hands every request to the test, which then drives fragments and
// the final outcome by hand.
type scriptedTransport struct {
	calls chan *pendingCall
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{calls: make(chan *pendingCall, 4)}
}

func (t *scriptedTransport) SendMessages(ctx context.Context, messages []Message, onFragment func(string)) error {
	c := &pendingCall{messages: messages, emit: onFragment, ctx: ctx, done: make(chan error, 1)}
	t.calls <- c
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *scriptedTransport) next(tt *testing.T) *pendingCall {
	tt.Helper()
	select {
	case c := <-t.calls:
		return c
	case <-time.After(2 * time.Second):
		tt.Fatal("transport was not called")
		return nil
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func waitForStatus(t *testing.T, s *Store, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Status() == want }, 2*time.Second, 5*time.Millisecond)
}

func TestStoreStartsEmptyAndReady(t *testing.T) {
	s := NewStore(context.Background(), newScriptedTransport())
	defer s.Close()

	snap := s.Snapshot()
	require.Equal(t, StatusReady, snap.Status)
	require.Empty(t, snap.Messages)
	require.True(t, snap.Empty())
}

func TestStoreEndToEndConversation(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr, WithIDGenerator(sequentialIDs()))
	defer s.Close()

	require.NoError(t, s.Submit("Hi"))
	snap := s.Snapshot()
	require.Equal(t, StatusSubmitted, snap.Status)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, RoleUser, snap.Messages[0].Role)
	require.Equal(t, "Hi", snap.Messages[0].Text())

	call := tr.next(t)
	require.Len(t, call.messages, 1)
	require.Equal(t, "Hi", call.messages[0].Text())

	call.emit("Hello")
	snap = s.Snapshot()
	require.Equal(t, StatusStreaming, snap.Status)
	require.Len(t, snap.Messages, 2)
	require.Equal(t, RoleAssistant, snap.Messages[1].Role)
	require.Equal(t, "Hello", snap.Messages[1].Text())

	call.done <- nil
	waitForStatus(t, s, StatusReady)
	require.Empty(t, s.Snapshot().LastError)
}

func TestStoreSubmitIgnoresBlankInput(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr)
	defer s.Close()

	for _, in := range []string{"", "   ", "\n\t"} {
		require.ErrorIs(t, s.Submit(in), ErrEmptyInput)
	}
	require.Empty(t, s.Snapshot().Messages)
	require.Equal(t, StatusReady, s.Status())

	require.NoError(t, s.Submit("hello"))
	tr.next(t)
	require.ErrorIs(t, s.Submit("  "), ErrEmptyInput)
	require.Len(t, s.Snapshot().Messages, 1)
}

func TestStoreRejectsSubmitWhileInFlight(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr)
	defer s.Close()

	require.NoError(t, s.Submit("first"))
	require.ErrorIs(t, s.Submit("second"), ErrNotReady)
	require.Len(t, s.Snapshot().Messages, 1)

	call := tr.next(t)
	call.emit("partial")
	require.ErrorIs(t, s.Submit("third"), ErrNotReady)
	require.Len(t, s.Snapshot().Messages, 2)

	call.done <- nil
	waitForStatus(t, s, StatusReady)
	require.NoError(t, s.Submit("fourth"))
	require.Len(t, s.Snapshot().Messages, 3)
}

func TestStoreAppliesFragmentsInArrivalOrder(t *testing.T) {
	cases := []struct {
		name      string
		fragments []string
		want      string
	}{
		{name: "forward", fragments: []string{"Hel", "lo"}, want: "Hello"},
		{name: "reversed", fragments: []string{"lo", "Hel"}, want: "loHel"},
		{name: "many", fragments: []string{"a", "b", "c", "d"}, want: "abcd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newScriptedTransport()
			s := NewStore(context.Background(), tr)
			defer s.Close()

			require.NoError(t, s.Submit("go"))
			call := tr.next(t)
			for _, f := range tc.fragments {
				call.emit(f)
			}
			call.done <- nil
			waitForStatus(t, s, StatusReady)

			snap := s.Snapshot()
			require.Len(t, snap.Messages, 2)
			last, ok := snap.LastAssistant()
			require.True(t, ok)
			require.Equal(t, tc.want, last.Text())
			require.Len(t, last.Parts, 1)
		})
	}
}

func TestStoreFailureKeepsPartialTextAndAllowsRetry(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr)
	defer s.Close()

	require.NoError(t, s.Submit("Hi"))
	call := tr.next(t)
	call.emit("Hel")
	call.done <- errors.New("connection reset")
	waitForStatus(t, s, StatusError)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.Equal(t, "Hel", snap.Messages[1].Text())
	require.Contains(t, snap.LastError, "connection reset")
	require.ErrorIs(t, s.LastError(), ErrTransportFailure)

	require.NoError(t, s.Submit("again"))
	require.Equal(t, StatusSubmitted, s.Status())
	retry := tr.next(t)
	require.Len(t, retry.messages, 3)
	require.Equal(t, "Hel", retry.messages[1].Text())
	require.Empty(t, s.Snapshot().LastError)
}

func TestStoreFailureBeforeFirstFragment(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr)
	defer s.Close()

	require.NoError(t, s.Submit("Hi"))
	tr.next(t).done <- errors.New("503")
	waitForStatus(t, s, StatusError)
	require.Len(t, s.Snapshot().Messages, 1)
}

func TestStoreCompletionWithoutFragments(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr)
	defer s.Close()

	require.NoError(t, s.Submit("Hi"))
	tr.next(t).done <- nil
	waitForStatus(t, s, StatusReady)
	require.Len(t, s.Snapshot().Messages, 1)
}

func TestStoreTransportPanicBecomesFailure(t *testing.T) {
	s := NewStore(context.Background(), TransportFunc(func(context.Context, []Message, func(string)) error {
		panic("boom")
	}))
	defer s.Close()

	require.NoError(t, s.Submit("Hi"))
	waitForStatus(t, s, StatusError)
	require.Contains(t, s.Snapshot().LastError, "boom")
}

func TestStoreMessageIDsAreUnique(t *testing.T) {
	s := NewStore(context.Background(), TransportFunc(func(_ context.Context, _ []Message, emit func(string)) error {
		emit("ok")
		return nil
	}))
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Submit(fmt.Sprintf("msg %d", i)))
		waitForStatus(t, s, StatusReady)
	}
	seen := map[string]bool{}
	snap := s.Snapshot()
	require.Len(t, snap.Messages, 10)
	for i, m := range snap.Messages {
		require.NotEmpty(t, m.ID)
		require.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
		if i%2 == 0 {
			require.Equal(t, RoleUser, m.Role)
		} else {
			require.Equal(t, RoleAssistant, m.Role)
		}
	}
}

func TestStoreObserversSeeIncreasingVersions(t *testing.T) {
	var mu sync.Mutex
	var versions []uint64
	var statuses []Status
	s := NewStore(context.Background(), TransportFunc(func(_ context.Context, _ []Message, emit func(string)) error {
		emit("a")
		emit("b")
		return nil
	}), WithObserver(func(snap Snapshot) {
		mu.Lock()
		versions = append(versions, snap.Version)
		statuses = append(statuses, snap.Status)
		mu.Unlock()
	}))
	defer s.Close()

	require.NoError(t, s.Submit("x"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) > 0 && statuses[len(statuses)-1] == StatusReady
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		require.Greater(t, versions[i], versions[i-1])
	}
}

func TestStoreCloseCancelsInFlightRequest(t *testing.T) {
	tr := newScriptedTransport()
	s := NewStore(context.Background(), tr)

	require.NoError(t, s.Submit("Hi"))
	call := tr.next(t)
	s.Close()
	require.Error(t, call.ctx.Err())
	require.ErrorIs(t, s.Submit("later"), ErrClosed)
}
