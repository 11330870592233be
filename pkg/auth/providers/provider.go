package providers

import (
	"context"
	"errors"
)

type AuthProvider interface {
	VerifyToken(ctx context.Context, token string) (*TokenClaims, error)
}

// TokenClaims is the verified platform identity plus the profile hints
// the platform supplies. UID is the external id the engine keys users by.
type TokenClaims struct {
	UID       string `json:"uid"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ErrInvalidIdentity rejects a malformed or unverifiable platform token.
type ErrInvalidIdentity struct {
	Reason string
}

func (e *ErrInvalidIdentity) Error() string {
	return "invalid identity: " + e.Reason
}

func IsInvalidIdentity(err error) bool {
	var invalid *ErrInvalidIdentity
	return errors.As(err, &invalid)
}
