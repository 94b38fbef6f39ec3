package identity

import (
	"fmt"
	"time"

	apperrors "github.com/FahadAltaf/PropPulse/internal/errors"
	"github.com/FahadAltaf/PropPulse/internal/models"
)

var errNoAccessToken = fmt.Errorf("%w: no access token", apperrors.ErrAPIResponse)

type verifyRequest struct {
	Type      string `json:"type"`
	TokenHash string `json:"token_hash"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateUserRequest struct {
	Password string `json:"password"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

// tokenResponse is the session payload returned by /verify and /token.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

func (r *tokenResponse) session(now time.Time) *models.Session {
	s := &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User:         r.User,
	}

	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}

	return s
}
