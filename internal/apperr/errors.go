package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidReference = errors.New("invalid reference")
)

// PersonNotFoundError reports a person name that did not resolve.
type PersonNotFoundError struct {
	Name string
}

func (e *PersonNotFoundError) Error() string {
	return fmt.Sprintf("person %q not found", e.Name)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *PersonNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
