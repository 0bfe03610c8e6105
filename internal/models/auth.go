package models

import (
	"time"
)

// Credentials are the client application's id and secret.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Valid reports whether both halves are present.
func (c Credentials) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TokenPair is the OAuth state for one user session.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token must not be used at now.
//
// A pair without an access token or expiry counts as expired.
func (t TokenPair) Expired(now time.Time) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime, floored at zero.
func (t TokenPair) ExpiresIn(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
