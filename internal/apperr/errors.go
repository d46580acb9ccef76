// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNoRoot        = errors.New("no search root")
	ErrNotDirectory  = errors.New("not a directory")
	ErrUnknownAction = errors.New("unknown action")
	ErrOutsideRoot   = errors.New("path outside search root")
	ErrNoSuchItem    = errors.New("no such item")
)
