package teachers

import "errors"

var (
	ErrNotFound     = errors.New("teacher not found")
	ErrDuplicate    = errors.New("employee id or department code already in use")
	ErrInvalidInput = errors.New("invalid teacher input")
)
