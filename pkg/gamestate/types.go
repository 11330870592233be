package gamestate

import "time"

// User is an internal user record. ExternalID is the platform-issued
// identity and never changes after creation. Points is derived from the
// authoritative snapshot's score and is never written by clients.
type User struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Points     int64  `json:"points"`
}

// GameState is a snapshot of a user's game progress. The authoritative
// snapshot for a user is the one with the greatest CreatedAt, ties broken
// by insertion order.
type GameState struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Score          int64     `json:"score"`
	MovesRemaining int64     `json:"moves_remaining"`
	CreatedAt      time.Time `json:"created_at"`
}

// Patch is a partial update to a snapshot. Nil fields are left unchanged.
type Patch struct {
	Score          *int64 `json:"score,omitempty"`
	MovesRemaining *int64 `json:"moves_remaining,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Score == nil && p.MovesRemaining == nil
}

// ProfileHints are the opaque profile fragments supplied by the identity
// platform on first contact. The engine stores them and never reads them.
type ProfileHints struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
