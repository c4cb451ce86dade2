package renderer

import "errors"

var (
	ErrInvalidSize = errors.New("renderer: frame dimensions must be positive")
	ErrNoImage     = errors.New("renderer: no image available")
)
