package chat

import "strings"

// Submitter is the part of a Store the Composer needs.
type Submitter interface {
	Submit(text string) error
}

// Composer owns the draft input of one UI and gates its submission.
type Composer struct {
	draft string
}

func (c *Composer) Draft() string { return c.draft }

func (c *Composer) SetDraft(s string) { c.draft = s }

// InputDisabled reports whether the text field must be disabled for status.
// The error state keeps the field enabled so a failed request can be retried.
func InputDisabled(status Status) bool {
	return !status.AcceptsSubmit()
}

// SendDisabled reports whether the send control must be disabled.
func SendDisabled(status Status, draft string) bool {
	return InputDisabled(status) || strings.TrimSpace(draft) == ""
}

// Send submits the draft as typed and clears it once the submission is accepted,
// without waiting for the response. A blank draft is a no-op returning ErrEmptyInput.
func (c *Composer) Send(status Status, s Submitter) error {
	if strings.TrimSpace(c.draft) == "" {
		return ErrEmptyInput
	}
	if InputDisabled(status) {
		return ErrNotReady
	}
	if err := s.Submit(c.draft); err != nil {
		return err
	}
	c.draft = ""
	return nil
}
