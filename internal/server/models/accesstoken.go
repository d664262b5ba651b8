package models

import "time"

// AccessToken is a login token minted for an Account.
type AccessToken struct {
	ID        string
	AccountID string
	TTL       time.Duration
	Created   time.Time

	// Token is the signed value handed to the caller. It is not persisted.
	Token string
}

// ExpiresAt returns the instant the token stops being valid.
func (t *AccessToken) ExpiresAt() time.Time {
	return t.Created.Add(t.TTL)
}

// Expired reports whether the token is no longer valid at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}
