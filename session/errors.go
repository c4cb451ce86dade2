package session

import "errors"

var (
	ErrUnexpectedMessage = errors.New("session: unexpected message for current phase")
	ErrStaleFrame        = errors.New("session: frame does not match the current viewport")
)
