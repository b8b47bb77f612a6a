package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection wraps transport failures that survived every retry.
	ErrConnection = errors.New("imap connection failed")

	// ErrNoSuchMessage is returned when a UID FETCH produced no data for the
	// requested UID, usually because the message was expunged.
	ErrNoSuchMessage = errors.New("imap message not found")

	errNotConnected = errors.New("not connected")
)

// StatusError is a tagged NO or BAD completion.
type StatusError struct {
	Command string // command verb, e.g. "SELECT" or "UID COPY"
	Status  string // NO or BAD
	Code    string // response code without brackets, e.g. "NONEXISTENT"
	Text    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("imap %s failed: %s [%s] %s", e.Command, e.Status, e.Code, e.Text)
	}
	return fmt.Sprintf("imap %s failed: %s %s", e.Command, e.Status, e.Text)
}

// CodeName returns the atom of the response code ("APPENDUID" for
// "APPENDUID 38505 3955").
func (e *StatusError) CodeName() string {
	return codeName(e.Code)
}
