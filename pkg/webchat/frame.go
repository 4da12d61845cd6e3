package webchat

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/ui/web"
)

// Frame is the websocket payload for one snapshot.
type Frame struct {
	Version       uint64      `json:"version"`
	Status        chat.Status `json:"status"`
	InputDisabled bool        `json:"input_disabled"`
	Busy          bool        `json:"busy"`
	HTML          string      `json:"html"`
	StatusHTML    string      `json:"status_html"`
}

func BuildFrame(r *web.Renderer, snap chat.Snapshot) (Frame, error) {
	var conv, status bytes.Buffer
	if err := r.RenderConversation(&conv, snap); err != nil {
		return Frame{}, errors.Wrap(err, "render conversation")
	}
	if err := r.RenderStatus(&status, snap); err != nil {
		return Frame{}, errors.Wrap(err, "render status")
	}
	return Frame{
		Version:       snap.Version,
		Status:        snap.Status,
		InputDisabled: chat.InputDisabled(snap.Status),
		Busy:          snap.Status.Busy(),
		HTML:          conv.String(),
		StatusHTML:    status.String(),
	}, nil
}

func encodeFrame(r *web.Renderer, snap chat.Snapshot) ([]byte, error) {
	f, err := BuildFrame(r, snap)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(f)
	return b, errors.Wrap(err, "encode frame")
}
