package network

import (
	"errors"
	"fmt"
)

// ErrStateNotFound is returned when the server has no snapshot for the
// user yet.
type ErrStateNotFound struct{}

func (e *ErrStateNotFound) Error() string {
	return "game state not found"
}

func IsStateNotFound(err error) bool {
	var notFound *ErrStateNotFound
	return errors.As(err, &notFound)
}

// ErrStatus is returned for any other non-2xx response.
type ErrStatus struct {
	Code int
	Body string
}

func (e *ErrStatus) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
