package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrCorruptCounts = errors.New("corrupt count file")
	ErrNotMarked     = errors.New("marker not applied")
)
