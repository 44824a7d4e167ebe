package backend

import "errors"

var (
	ErrNotFound   = errors.New("backend: entity not found")
	ErrValidation = errors.New("backend: request rejected as invalid")
	ErrBackend    = errors.New("backend: unexpected response")
)
