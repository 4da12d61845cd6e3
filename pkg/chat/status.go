package chat

// Status is the request lifecycle state of a Store.
type Status string

const (
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Busy reports whether a request is in flight.
func (s Status) Busy() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

// AcceptsSubmit reports whether Submit may start a new request from this state.
func (s Status) AcceptsSubmit() bool {
	return s == StatusReady || s == StatusError
}

func (s Status) String() string { return string(s) }
