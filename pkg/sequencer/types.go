package sequencer

import "errors"

// ErrInvalidPatch rejects a patch before any mutation happens.
type ErrInvalidPatch struct {
	Reason string
}

func (e *ErrInvalidPatch) Error() string {
	return "invalid patch: " + e.Reason
}

func IsInvalidPatch(err error) bool {
	var invalid *ErrInvalidPatch
	return errors.As(err, &invalid)
}
