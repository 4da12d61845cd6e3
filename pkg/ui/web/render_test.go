package web

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

func render(t *testing.T, r *Renderer, snap chat.Snapshot) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.RenderConversation(&buf, snap))
	return buf.String()
}

func TestEmptyConversationShowsGreeting(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out := render(t, r, chat.Snapshot{Status: chat.StatusReady})
	require.Contains(t, out, "Hello!")
	require.Contains(t, out, "Start a conversation now.")
}

func TestConversationEscapesTextAndSkipsOpaqueParts(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	snap := chat.Snapshot{
		Version: 3,
		Status:  chat.StatusReady,
		Messages: []chat.Message{
			chat.NewTextMessage("u1", chat.RoleUser, "<b>hi</b>"),
			{
				ID:   "a1",
				Role: chat.RoleAssistant,
				Parts: []chat.Part{
					&chat.OpaquePart{Kind: "tool-call", Raw: []byte(`{"type":"tool-call","secret":"x"}`)},
					&chat.TextPart{Text: "hello back"},
				},
			},
		},
	}
	out := render(t, r, snap)
	require.Contains(t, out, "&lt;b&gt;hi&lt;/b&gt;")
	require.NotContains(t, out, "<b>hi</b>")
	require.Contains(t, out, "row-user")
	require.Contains(t, out, "row-other")
	require.Contains(t, out, "hello back")
	require.NotContains(t, out, "secret")
	require.NotContains(t, out, "Hello!")
}

func TestMarkdownOnlyForAssistant(t *testing.T) {
	r, err := NewRenderer(WithMarkdown(true))
	require.NoError(t, err)

	snap := chat.Snapshot{
		Status: chat.StatusReady,
		Messages: []chat.Message{
			chat.NewTextMessage("u1", chat.RoleUser, "**raw**"),
			chat.NewTextMessage("a1", chat.RoleAssistant, "**bold** <script>alert(1)</script>"),
		},
	}
	out := render(t, r, snap)
	require.Contains(t, out, "**raw**")
	require.Contains(t, out, "<strong>bold</strong>")
	require.NotContains(t, out, "<script>")
}

func TestStatusLine(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	for _, tc := range []struct {
		status chat.Status
		want   string
	}{
		{chat.StatusReady, ""},
		{chat.StatusSubmitted, "AI is thinking..."},
		{chat.StatusStreaming, "AI is thinking..."},
		{chat.StatusError, "You can send your message again."},
	} {
		var buf bytes.Buffer
		require.NoError(t, r.RenderStatus(&buf, chat.Snapshot{Status: tc.status}))
		if tc.want == "" {
			require.Empty(t, strings.TrimSpace(buf.String()), tc.status)
			continue
		}
		require.Contains(t, buf.String(), tc.want, tc.status)
	}
}

func TestPageDisablesControlsWhileBusy(t *testing.T) {
	r, err := NewRenderer(WithTitle("Test Bot"))
	require.NoError(t, err)

	page := func(status chat.Status, draft string) string {
		var buf bytes.Buffer
		require.NoError(t, r.RenderPage(&buf, PageData{
			SessionID: "s1",
			Snapshot:  chat.Snapshot{Status: status},
			Draft:     draft,
		}))
		return buf.String()
	}

	busy := page(chat.StatusStreaming, "")
	require.Contains(t, busy, "<title>Test Bot</title>")
	require.Contains(t, busy, `data-session-id="s1"`)
	require.Contains(t, busy, "Type your message here...")
	require.Regexp(t, `id="chat-input"[^>]* disabled>`, busy)

	retry := page(chat.StatusError, "again")
	require.NotRegexp(t, `id="chat-input"[^>]* disabled>`, retry)
	require.NotRegexp(t, `id="chat-send"[^>]* disabled>`, retry)

	blank := page(chat.StatusReady, "   ")
	require.NotRegexp(t, `id="chat-input"[^>]* disabled>`, blank)
	require.Regexp(t, `id="chat-send"[^>]* disabled>`, blank)
}

func TestStaticAssetsEmbedded(t *testing.T) {
	js, err := fs.ReadFile(StaticFS(), "app.js")
	require.NoError(t, err)
	require.Contains(t, string(js), "function sessionGone()")
}
