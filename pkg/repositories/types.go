package repositories

import "errors"

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	var notFound *ErrNotFound
	return errors.As(err, &notFound)
}

// ErrStoreUnavailable wraps a transient storage failure. The engine does
// not retry these; the next flush or poll is the retry path.
type ErrStoreUnavailable struct {
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return "store unavailable: " + e.Err.Error()
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

func IsStoreUnavailable(err error) bool {
	var unavailable *ErrStoreUnavailable
	return errors.As(err, &unavailable)
}
