// Package recovery validates password-recovery links and drives the
// password change that follows.
//
// A recovery link arrives in one of two shapes:
//
//	#access_token=<opaque>&refresh_token=<opaque>&type=recovery
//	?token_hash=<opaque>&type=recovery
//
// Flow.Check runs an ordered list of matchers over the link and stops at
// the first one that recognises it. Flow.Submit performs the password
// change against the session that check produced.
package recovery

//go:generate mockgen -source=identity.go -destination=mock_identity_test.go -package=recovery

import (
	"context"

	"github.com/FahadAltaf/PropPulse/internal/models"
)

// Identity is the slice of the identity provider the recovery flow uses.
type Identity interface {
	// EstablishSession builds a session from a fragment-delivered token
	// pair. refreshToken may be empty.
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error)
	// ExchangeRecoveryHash trades a query-delivered token hash for a session.
	ExchangeRecoveryHash(ctx context.Context, tokenHash string) (*models.Session, error)
	UpdatePassword(ctx context.Context, s *models.Session, newPassword string) error
	SignOut(ctx context.Context, s *models.Session) error
}
