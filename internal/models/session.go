// Package models defines types shared across internal packages.
package models

import "time"

// User is the subset of the identity provider's user record the
// recovery flow cares about.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is an authenticated credential pair issued by the identity
// provider.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has passed its expiry. A zero
// ExpiresAt means the provider did not say, which is treated as live.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// RecoverySession binds a browser cookie to a provider session that was
// established from a recovery link. The ID is the raw cookie value and
// is never persisted; storage keys use its hash.
type RecoverySession struct {
	ID        string    `json:"-"`
	Session   Session   `json:"session"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
