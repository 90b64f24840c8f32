package proxy

import (
	"errors"
	"fmt"

	"github.com/guseggert/dhplugin/message"
)

var (
	ErrTransport       = errors.New("transport error")
	ErrTransportClosed = errors.New("transport closed")
	ErrTimeout         = errors.New("response timeout")
	ErrRemoteFailure   = errors.New("remote failure")
	ErrDuplicateID     = errors.New("request id already pending")
	ErrMalformedFrame  = message.ErrMalformedFrame
)

// TransportError is a socket-level failure. It matches ErrTransport with errors.Is.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RemoteError is returned by Send when the response has status "failed".
// It matches ErrRemoteFailure with errors.Is.
type RemoteError struct {
	ID      string
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s request %s failed", e.Action, e.ID)
	}
	return fmt.Sprintf("%s request %s failed: %s", e.Action, e.ID, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteFailure }
