package auth

import (
	"net/http"
	"time"

	"github.com/FahadAltaf/PropPulse/internal/models"
)

const (
	recoveryCookieName = "pp_recovery"
	recoveryCookiePath = "/auth"
)

func setRecoveryCookie(w http.ResponseWriter, rs *models.RecoverySession, secure bool) {
	maxAge := int(time.Until(rs.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     recoveryCookieName,
		Value:    rs.ID,
		Path:     recoveryCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRecoveryCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     recoveryCookieName,
		Value:    "",
		Path:     recoveryCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// recoveryCookie returns the raw session id from the request, or "".
func recoveryCookie(r *http.Request) string {
	c, err := r.Cookie(recoveryCookieName)
	if err != nil {
		return ""
	}

	return c.Value
}
