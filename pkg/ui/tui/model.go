// Package tui is the full-screen terminal front end of a chat session.
package tui

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

// Session is what the model needs from a chat.Store.
type Session interface {
	chat.Submitter
	Snapshot() chat.Snapshot
}

type Options struct {
	Title    string
	Markdown bool
	// CopyText replaces the system clipboard, mostly for tests.
	CopyText func(string) error
}

type snapshotMsg chat.Snapshot

type copiedMsg struct{ err error }

type Model struct {
	session  Session
	updates  <-chan chat.Snapshot
	opts     Options
	snap     chat.Snapshot
	composer chat.Composer

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	md       *glamour.TermRenderer

	width  int
	notice string
}

func NewModel(session Session, updates <-chan chat.Snapshot, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "AI Chatbot"
	}
	if opts.CopyText == nil {
		opts.CopyText = clipboard.WriteAll
	}
	in := textinput.New()
	in.Placeholder = "Type your message here..."
	in.Prompt = "> "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	m := Model{
		session:  session,
		updates:  updates,
		opts:     opts,
		snap:     session.Snapshot(),
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
	m.refresh()
	return m
}

func waitForSnapshot(ch <-chan chat.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForSnapshot(m.updates))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = ev.Width
		m.viewport.Width = ev.Width
		// title, status, input and help lines
		m.viewport.Height = max(ev.Height-5, 1)
		m.input.Width = max(ev.Width-4, 10)
		if m.opts.Markdown {
			if md, err := newMarkdown(ev.Width - 2); err == nil {
				m.md = md
			}
		}
		m.refresh()
		return m, nil

	case snapshotMsg:
		snap := chat.Snapshot(ev)
		cmds := []tea.Cmd{waitForSnapshot(m.updates)}
		if snap.Version < m.snap.Version {
			return m, tea.Batch(cmds...)
		}
		wasBusy := m.snap.Status.Busy()
		m.snap = snap
		m.refresh()
		if snap.Status.Busy() && !wasBusy {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.snap.Status.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(ev)
		return m, cmd

	case copiedMsg:
		if ev.err != nil {
			m.notice = "copy failed: " + ev.err.Error()
		} else {
			m.notice = "copied last answer to the clipboard"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(ev)
	}
	return m, nil
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+y":
		last, ok := m.snap.LastAssistant()
		if !ok {
			m.notice = "nothing to copy yet"
			return m, nil
		}
		copyText, text := m.opts.CopyText, last.Text()
		return m, func() tea.Msg { return copiedMsg{err: copyText(text)} }
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(k)
		return m, cmd
	case "enter":
		m.composer.SetDraft(m.input.Value())
		err := m.composer.Send(m.snap.Status, m.session)
		switch {
		case err == nil:
			// Gate locally until the submitted snapshot arrives.
			m.input.SetValue("")
			m.notice = ""
			m.snap.Status = chat.StatusSubmitted
			m.refresh()
			return m, m.spinner.Tick
		case stderrors.Is(err, chat.ErrEmptyInput):
		case stderrors.Is(err, chat.ErrNotReady):
			m.notice = "wait for the current answer"
		default:
			m.notice = err.Error()
		}
		return m, nil
	}

	if chat.InputDisabled(m.snap.Status) {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

func (m *Model) refresh() {
	if chat.InputDisabled(m.snap.Status) {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
	m.viewport.SetContent(renderConversation(m.snap, m.width, m.md))
	m.viewport.GotoBottom()
}

func (m Model) statusLine() string {
	switch {
	case m.snap.Status.Busy():
		return m.spinner.View() + " " + thinkingStyle.Render("AI is thinking...")
	case m.snap.Status == chat.StatusError:
		return errorStyle.Render("Something went wrong: the response could not be completed. You can send your message again.")
	case m.notice != "":
		return noticeStyle.Render(m.notice)
	}
	return ""
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • ctrl+y copy answer • pgup/pgdown scroll • esc quit"))
	return b.String()
}

// latestInto forwards snapshots to a one-slot channel, replacing an unread one.
// Store observers are serialized, so there is a single sender.
func latestInto(ch chan chat.Snapshot) chat.Observer {
	return func(s chat.Snapshot) {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Run drives the store from a full-screen program until the user quits or ctx ends.
func Run(ctx context.Context, store *chat.Store, opts Options) error {
	updates := make(chan chat.Snapshot, 1)
	store.Observe(latestInto(updates))
	p := tea.NewProgram(NewModel(store, updates, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "run terminal ui")
	}
	return nil
}
