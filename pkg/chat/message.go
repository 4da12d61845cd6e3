package chat

import (
	"encoding/json"
	"strings"
)

// Role is the originator of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// PartType tags a Part variant.
type PartType string

const PartTypeText PartType = "text"

// Part is one element of a message body. Only *TextPart is rendered; every other
// variant is carried along untouched.
type Part interface {
	Type() PartType
	clone() Part
}

// TextPart is a chunk of plain text.
type TextPart struct {
	Text string
}

func (p *TextPart) Type() PartType { return PartTypeText }

func (p *TextPart) clone() Part {
	c := *p
	return &c
}

// OpaquePart keeps a part this package does not interpret (reasoning, tool
// invocations, files...) in its raw JSON form.
type OpaquePart struct {
	Kind PartType
	Raw  json.RawMessage
}

func (p *OpaquePart) Type() PartType { return p.Kind }

func (p *OpaquePart) clone() Part {
	c := &OpaquePart{Kind: p.Kind}
	if p.Raw != nil {
		c.Raw = append(json.RawMessage(nil), p.Raw...)
	}
	return c
}

// Message is a single conversation entry.
type Message struct {
	ID    string
	Role  Role
	Parts []Part
}

// NewTextMessage builds a message with a single text part.
func NewTextMessage(id string, role Role, text string) Message {
	return Message{ID: id, Role: role, Parts: []Part{&TextPart{Text: text}}}
}

// Text concatenates the text parts of the message in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{ID: m.ID, Role: m.Role}
	if m.Parts != nil {
		out.Parts = make([]Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p == nil {
				continue
			}
			out.Parts = append(out.Parts, p.clone())
		}
	}
	return out
}

// CloneMessages deep-copies a conversation.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
