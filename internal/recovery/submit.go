package recovery

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/FahadAltaf/PropPulse/internal/errors"
	"github.com/FahadAltaf/PropPulse/internal/models"
)

// Submit changes the password on a session obtained from Check. Mismatch
// and weak passwords are rejected before any provider call. On success
// the session is signed out and the login redirect is returned.
//
// A failed update returns an error wrapping ErrUpdateFailed and the
// provider error; the session stays usable for another attempt.
func (f *Flow) Submit(ctx context.Context, s *models.Session, password, confirm string) (string, error) {
	if password != confirm {
		return "", apperrors.ErrPasswordMismatch
	}

	if !IsPasswordStrong(password) {
		return "", apperrors.ErrWeakPassword
	}

	if err := f.identity.UpdatePassword(ctx, s, password); err != nil {
		f.logger.Warn("password update failed",
			slog.String("user_id", s.User.ID),
			slog.String("error", err.Error()),
		)

		return "", fmt.Errorf("%w: %w", apperrors.ErrUpdateFailed, err)
	}

	f.logger.Info("password updated", slog.String("user_id", s.User.ID))

	// The password has already changed, so a failed sign-out must not
	// keep the user on the form.
	if err := f.identity.SignOut(ctx, s); err != nil {
		f.logger.Warn("sign-out after password reset failed",
			slog.String("user_id", s.User.ID),
			slog.String("error", err.Error()),
		)
	}

	return f.LoginRedirect(), nil
}
