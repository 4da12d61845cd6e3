// Package web renders chat snapshots to HTML. It holds no session state: every
// call reads a chat.Snapshot and a draft and produces markup.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// StaticFS returns the stylesheet and script served under /static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

const DefaultTitle = "AI Chatbot"

type Renderer struct {
	tmpl     *template.Template
	md       goldmark.Markdown
	markdown bool
	title    string
}

type Option func(*Renderer)

// WithMarkdown renders assistant text as Markdown. Raw HTML in the source is dropped.
func WithMarkdown(enabled bool) Option {
	return func(r *Renderer) { r.markdown = enabled }
}

func WithTitle(title string) Option {
	return func(r *Renderer) {
		if title != "" {
			r.title = title
		}
	}
}

func NewRenderer(opts ...Option) (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	r := &Renderer{
		tmpl:  tmpl,
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		title: DefaultTitle,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// PageData is everything the full page depends on.
type PageData struct {
	SessionID string
	Snapshot  chat.Snapshot
	Draft     string
}

type pageView struct {
	Title         string
	SessionID     string
	Draft         string
	InputDisabled bool
	SendDisabled  bool
	Conversation  conversationView
}

type conversationView struct {
	Version  uint64
	Empty    bool
	Busy     bool
	Error    string
	Messages []messageView
}

type messageView struct {
	ID     string
	Role   chat.Role
	IsUser bool
	Parts  []partView
}

type partView struct {
	Text     string
	HTML     template.HTML
	Markdown bool
}

func (r *Renderer) RenderPage(w io.Writer, d PageData) error {
	cv, err := r.conversation(d.Snapshot)
	if err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(w, "page", pageView{
		Title:         r.title,
		SessionID:     d.SessionID,
		Draft:         d.Draft,
		InputDisabled: chat.InputDisabled(d.Snapshot.Status),
		SendDisabled:  chat.SendDisabled(d.Snapshot.Status, d.Draft),
		Conversation:  cv,
	})
}

// RenderConversation renders the message list.
func (r *Renderer) RenderConversation(w io.Writer, snap chat.Snapshot) error {
	cv, err := r.conversation(snap)
	if err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(w, "conversation", cv)
}

// RenderStatus renders the thinking indicator or the error notice.
func (r *Renderer) RenderStatus(w io.Writer, snap chat.Snapshot) error {
	cv, err := r.conversation(snap)
	if err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(w, "status", cv)
}

func (r *Renderer) conversation(snap chat.Snapshot) (conversationView, error) {
	cv := conversationView{
		Version:  snap.Version,
		Empty:    snap.Empty(),
		Busy:     snap.Status.Busy(),
		Messages: make([]messageView, 0, len(snap.Messages)),
	}
	if snap.Status == chat.StatusError {
		cv.Error = "the response could not be completed"
	}
	for _, m := range snap.Messages {
		mv := messageView{ID: m.ID, Role: m.Role, IsUser: m.Role == chat.RoleUser}
		for _, p := range m.Parts {
			tp, ok := p.(*chat.TextPart)
			if !ok {
				continue
			}
			pv := partView{Text: tp.Text}
			if r.markdown && m.Role == chat.RoleAssistant {
				var buf bytes.Buffer
				if err := r.md.Convert([]byte(tp.Text), &buf); err != nil {
					return conversationView{}, errors.Wrapf(err, "render markdown of message %s", m.ID)
				}
				// goldmark leaves raw HTML out unless html.WithUnsafe is set.
				pv.HTML = template.HTML(buf.String()) // #nosec G203
				pv.Markdown = true
			}
			mv.Parts = append(mv.Parts, pv)
		}
		cv.Messages = append(cv.Messages, mv)
	}
	return cv, nil
}
