// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnsupportedMessage = errors.New("unsupported message kind")
)
