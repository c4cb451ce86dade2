package protocol

import "errors"

var (
	ErrMalformedMessage = errors.New("protocol: malformed message")
	ErrUnknownKind      = errors.New("protocol: unknown message kind")
	ErrSizeMismatch     = errors.New("protocol: payload size does not match viewport")
)
