package instar

import (
	"errors"
	"fmt"
)

// Domain errors for the Instar bridge package.
var (
	// ErrDecode matches every *DecodeError via errors.Is.
	ErrDecode = errors.New("instar: invalid payload")

	// ErrMissingCollaborator is returned when a required subscriber
	// dependency is nil.
	ErrMissingCollaborator = errors.New("instar: missing collaborator")

	// ErrAlreadyStarted is returned by Start on a running subscriber.
	ErrAlreadyStarted = errors.New("instar: subscriber already started")
)

// Decode failure reasons.
const (
	ReasonEmptyPayload = "empty payload"
	ReasonInvalidUTF8  = "invalid utf-8"
	ReasonInvalidJSON  = "invalid json"
	ReasonMissingVal   = "missing val"
	ReasonValNotInt    = "val not an integer"
)

// DecodeError describes a payload that does not match {"val":"<int>"}.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode //nolint:errorlint // sentinel identity
}
