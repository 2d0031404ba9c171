package model

import "errors"

var (
	// ErrAlreadyExists is returned when an outcome with the same ID has already been recorded.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a request, policy, outcome or scenario is not valid.
	ErrNotValid = errors.New("not valid")
)
