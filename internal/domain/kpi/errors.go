package kpi

import "errors"

var (
	ErrNotFound        = errors.New("kpi request not found")
	ErrInvalidRequest  = errors.New("invalid kpi request")
	ErrAlreadyReviewed = errors.New("kpi request already reviewed")
)
