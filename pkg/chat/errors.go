package chat

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	ErrEmptyInput       = errors.New("empty input")
	ErrNotReady         = errors.New("a request is already in flight")
	ErrClosed           = errors.New("session closed")
	ErrTransportFailure = errors.New("transport failure")
)

// TransportFailure wraps any error raised while streaming a response.
type TransportFailure struct {
	Cause error
}

func (e *TransportFailure) Error() string {
	if e.Cause == nil {
		return ErrTransportFailure.Error()
	}
	return ErrTransportFailure.Error() + ": " + e.Cause.Error()
}

func (e *TransportFailure) Unwrap() error { return e.Cause }

func (e *TransportFailure) Is(target error) bool { return target == ErrTransportFailure }

// AsTransportFailure converts err into a *TransportFailure, keeping an existing one.
func AsTransportFailure(err error) *TransportFailure {
	if err == nil {
		return nil
	}
	var tf *TransportFailure
	if stderrors.As(err, &tf) {
		return tf
	}
	return &TransportFailure{Cause: err}
}
