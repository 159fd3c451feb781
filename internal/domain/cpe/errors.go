package cpe

import "errors"

var (
	ErrNotFound        = errors.New("cpe record not found")
	ErrInvalidRecord   = errors.New("invalid cpe record")
	ErrNotEditable     = errors.New("cpe record is no longer editable")
	ErrAlreadyReviewed = errors.New("cpe record already reviewed")
)
