package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress     = errors.New("dispatch: invalid address")
	ErrInvalidFilePath    = errors.New("dispatch: invalid file path")
	ErrNoRecipients       = errors.New("dispatch: no recipients")
	ErrNoFile             = errors.New("dispatch: no file")
	ErrInvalidMessage     = errors.New("dispatch: invalid message")
	ErrNoRemoteConnection = errors.New("dispatch: no remote connection")
	ErrCouldntSendEmail   = errors.New("dispatch: couldn't send email")
	ErrEmptyFeedback      = errors.New("dispatch: empty feedback")
)

// SendError reports a message the transport refused or failed to deliver.
// It matches ErrCouldntSendEmail and unwraps to the transport error.
type SendError struct {
	Provider string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%v via %s: %v", ErrCouldntSendEmail, e.Provider, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrCouldntSendEmail, e.Err}
}
