package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type wireMessage struct {
	ID    string            `json:"id"`
	Role  Role              `json:"role"`
	Parts []json.RawMessage `json:"parts"`
}

type wireTextPart struct {
	Type PartType `json:"type"`
	Text string   `json:"text"`
}

// MarshalJSON encodes the message in UI message form:
// {"id":..,"role":..,"parts":[{"type":"text","text":..}]}.
func (m Message) MarshalJSON() ([]byte, error) {
	wm := wireMessage{ID: m.ID, Role: m.Role, Parts: make([]json.RawMessage, 0, len(m.Parts))}
	for _, p := range m.Parts {
		switch v := p.(type) {
		case *TextPart:
			b, err := json.Marshal(wireTextPart{Type: PartTypeText, Text: v.Text})
			if err != nil {
				return nil, err
			}
			wm.Parts = append(wm.Parts, b)
		case *OpaquePart:
			if len(v.Raw) == 0 {
				b, err := json.Marshal(map[string]string{"type": string(v.Kind)})
				if err != nil {
					return nil, err
				}
				wm.Parts = append(wm.Parts, b)
				continue
			}
			wm.Parts = append(wm.Parts, v.Raw)
		}
	}
	return json.Marshal(wm)
}

// UnmarshalJSON decodes a UI message. Parts other than text are kept as OpaquePart.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}
	m.ID = wm.ID
	m.Role = wm.Role
	m.Parts = make([]Part, 0, len(wm.Parts))
	for i, raw := range wm.Parts {
		var head struct {
			Type PartType `json:"type"`
			Text string   `json:"text"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return errors.Wrapf(err, "decode part %d of message %q", i, wm.ID)
		}
		if head.Type == PartTypeText {
			m.Parts = append(m.Parts, &TextPart{Text: head.Text})
			continue
		}
		m.Parts = append(m.Parts, &OpaquePart{Kind: head.Type, Raw: append(json.RawMessage(nil), raw...)})
	}
	return nil
}
