package rubric

import "errors"

var (
	ErrNotFound      = errors.New("rubric version not found")
	ErrInvalidRubric = errors.New("invalid rubric")
)
