package transport

import "errors"

var (
	ErrTransport    = errors.New("transport: connection failed")
	ErrClosed       = errors.New("transport: connection closed")
	ErrStopped      = errors.New("transport: manager stopped")
	ErrReadPending  = errors.New("transport: a read is already in progress")
	ErrWritePending = errors.New("transport: a write is already in progress")
)
