// Package model defines domain entities for the application.
package model

// Identity is a caller resolved from a bearer token.
// It is never persisted; every request re-resolves it from the token.
type Identity struct {
	// ID is the identity provider's opaque user id (JWT subject).
	ID string `json:"id"`
	// Email may be empty when the provider did not include an email claim.
	Email string `json:"email,omitempty"`
}

// HasEmail reports whether the identity carries an email claim.
func (i Identity) HasEmail() bool {
	return i.Email != ""
}
