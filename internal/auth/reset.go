package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FahadAltaf/PropPulse/internal/config"
	apperrors "github.com/FahadAltaf/PropPulse/internal/errors"
	"github.com/FahadAltaf/PropPulse/internal/identity"
	"github.com/FahadAltaf/PropPulse/internal/logging"
	"github.com/FahadAltaf/PropPulse/internal/models"
	"github.com/FahadAltaf/PropPulse/internal/recovery"
)

// Route paths served by this package.
const (
	ResetPasswordPath    = "/auth/reset-password"
	VerifyPath           = "/auth/reset-password/verify"
	PasswordStrengthPath = "/auth/password-strength"
	ForgotPasswordPath   = "/auth/forgot-password"
)

const (
	// maxRequestBody caps form and JSON bodies.
	maxRequestBody = 64 << 10

	resetRateWindow  = 15 * time.Minute
	maxResetFailures = 10

	// DefaultSessionTTL bounds a recovery session when none is configured.
	DefaultSessionTTL = 15 * time.Minute
)

// User-facing messages for the reset form.
const (
	mismatchMessage       = "Passwords do not match"
	weakPasswordMessage   = "Please meet all password requirements"
	updateFailedMessage   = "Failed to reset password. Please try again."
	sessionExpiredNotice  = "Your reset session has expired. Please request a new link."
	sessionMissingNotice  = "No password reset is in progress. Please use the link from your email."
	staleFormMessage      = "Your form expired. Please try again."
	badRequestMessage     = "Invalid request."
	tooManyAttemptsNotice = "Too many attempts. Please try again later."
)

// ResetConfig holds the dependencies of the reset-password handlers.
type ResetConfig struct {
	Store      *Store
	Flow       *recovery.Flow
	Site       config.SiteSettings
	SessionTTL time.Duration
	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool
	Logger        *slog.Logger
}

// ResetHandlers serves the reset-password page, the link verification
// relay and the live strength check.
type ResetHandlers struct {
	cfg     ResetConfig
	limiter *rateLimiter
}

// NewResetHandlers creates the reset-password handlers. Verification and
// submission failures share one per-IP limiter.
func NewResetHandlers(cfg ResetConfig) *ResetHandlers {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	return &ResetHandlers{
		cfg:     cfg,
		limiter: newRateLimiter(resetRateWindow, maxResetFailures),
	}
}

// ResetPassword handles GET and POST /auth/reset-password.
//
// GET always renders the checking page. Its script relays the URL
// fragment, which never reaches the server, to VerifyPath together with
// the query, so every page load reads the link afresh. POST submits the
// new-password form.
func (h *ResetHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.resetGET(w, r)
	case http.MethodPost:
		h.resetPOST(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ResetHandlers) resetGET(w http.ResponseWriter, r *http.Request) {
	data := newPageData(h.cfg.Site, "Reset password")
	data.Relay = true
	data.RawQuery = r.URL.RawQuery

	renderPage(w, http.StatusOK, "checking", data)
}

// Verify handles POST /auth/reset-password/verify. It runs the link
// matchers over the relayed fragment and query. A valid link replaces any
// existing recovery session and redirects to the bare reset path so the
// token is dropped from the address bar. When no matcher recognises the
// parameters, a live session from the cookie gets its form; otherwise the
// page stays on the checking state.
func (h *ResetHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := logging.With(r.Context(), h.cfg.Logger)

	if !sameOrigin(r) {
		logger.Warn("cross-site recovery verification rejected",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("sec_fetch_site", r.Header.Get("Sec-Fetch-Site")),
		)
		h.renderInvalid(w, http.StatusForbidden, recovery.InvalidLinkNotice)

		return
	}

	ip := remoteIP(r)
	if h.limiter.limited(ip) {
		logger.Warn("recovery verification rate limited", slog.String("remote_addr", ip))
		h.renderInvalid(w, http.StatusTooManyRequests, tooManyAttemptsNotice)

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		h.renderInvalid(w, http.StatusBadRequest, recovery.InvalidLinkNotice)
		return
	}

	// A malformed query still yields whatever pairs parsed.
	query, _ := url.ParseQuery(r.PostFormValue("query"))

	out := h.cfg.Flow.Check(r.Context(), recovery.Location{
		Path:     ResetPasswordPath,
		Fragment: r.PostFormValue("fragment"),
		Query:    query,
	})

	sessionID := recoveryCookie(r)

	switch out.Validity {
	case recovery.Valid:
		if sessionID != "" {
			h.cfg.Store.DeleteSession(sessionID)
		}

		rs := h.cfg.Store.CreateSession(out.Session, h.cfg.SessionTTL)
		setRecoveryCookie(w, rs, h.cfg.SecureCookies)

		logger.Info("recovery session started",
			slog.String("matcher", out.Matcher),
			slog.String("user_id", rs.Session.User.ID),
			slog.Time("expires_at", rs.ExpiresAt),
		)

		http.Redirect(w, r, out.CleanURL, http.StatusSeeOther)
	case recovery.Invalid:
		h.limiter.record(ip)
		h.renderInvalid(w, http.StatusBadRequest, out.Notice)
	default:
		if out.Err != nil {
			logger.Debug("recovery check abandoned", slog.String("error", out.Err.Error()))
			renderPage(w, http.StatusOK, "checking", newPageData(h.cfg.Site, "Reset password"))

			return
		}

		if rs := h.cfg.Store.Session(sessionID); rs != nil {
			h.renderForm(w, http.StatusOK, sessionID, rs, "", recovery.Strength{})
			return
		}

		renderPage(w, http.StatusOK, "checking", newPageData(h.cfg.Site, "Reset password"))
	}
}

func (h *ResetHandlers) resetPOST(w http.ResponseWriter, r *http.Request) {
	logger := logging.With(r.Context(), h.cfg.Logger)
	sessionID := recoveryCookie(r)

	rs, err := h.cfg.Store.Lookup(sessionID)
	if err != nil {
		logger.Info("password reset without a live session", slog.String("reason", err.Error()))
		clearRecoveryCookie(w, h.cfg.SecureCookies)

		notice := sessionMissingNotice
		if errors.Is(err, apperrors.ErrSessionExpired) {
			notice = sessionExpiredNotice
		}

		h.renderInvalid(w, http.StatusBadRequest, notice)

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, http.StatusBadRequest, sessionID, rs, badRequestMessage, recovery.Strength{})
		return
	}

	if !h.cfg.Store.ConsumeCSRF(r.PostFormValue("csrf_token"), sessionID) {
		h.renderForm(w, http.StatusForbidden, sessionID, rs, staleFormMessage, recovery.Strength{})
		return
	}

	ip := remoteIP(r)
	if h.limiter.limited(ip) {
		logger.Warn("password reset rate limited", slog.String("remote_addr", ip))
		h.renderForm(w, http.StatusTooManyRequests, sessionID, rs, tooManyAttemptsNotice, recovery.Strength{})

		return
	}

	password := r.PostFormValue("password")
	strength := recovery.EvaluatePassword(password)

	dest, err := h.cfg.Flow.Submit(r.Context(), &rs.Session, password, r.PostFormValue("confirm_password"))

	switch {
	case err == nil:
		h.cfg.Store.DeleteSession(sessionID)
		clearRecoveryCookie(w, h.cfg.SecureCookies)
		logger.Info("password reset completed", slog.String("user_id", rs.Session.User.ID))
		http.Redirect(w, r, dest, http.StatusSeeOther)
	case errors.Is(err, apperrors.ErrPasswordMismatch):
		h.renderForm(w, http.StatusBadRequest, sessionID, rs, mismatchMessage, strength)
	case errors.Is(err, apperrors.ErrWeakPassword):
		h.renderForm(w, http.StatusBadRequest, sessionID, rs, weakPasswordMessage, strength)
	default:
		h.limiter.record(ip)
		logger.Warn("password reset failed", slog.String("error", err.Error()))

		status := http.StatusUnprocessableEntity
		if identity.IsTransient(err) {
			status = http.StatusBadGateway
		}

		h.renderForm(w, status, sessionID, rs, identity.UserMessage(err, updateFailedMessage), strength)
	}
}

// strengthResponse is the JSON body of the strength endpoint.
type strengthResponse struct {
	recovery.Strength
	Strong bool `json:"is_strong"`
}

// PasswordStrength handles POST /auth/password-strength. It accepts a
// form or JSON body with a password field and returns every facet.
func (h *ResetHandlers) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "POST required")
		return
	}

	password, err := readPassword(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s := recovery.EvaluatePassword(password)

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, strengthResponse{Strength: s, Strong: s.IsStrong()})
}

// renderForm issues a fresh CSRF token for the cookie's session id. The
// id is taken from the cookie because sessions restored from disk only
// know its hash.
func (h *ResetHandlers) renderForm(w http.ResponseWriter, status int, sessionID string, rs *models.RecoverySession, errMsg string, s recovery.Strength) {
	data := newPageData(h.cfg.Site, "Reset password")
	data.Error = errMsg
	data.Email = rs.Session.User.Email
	data.Strength = s
	data.CSRFToken = h.cfg.Store.NewCSRF(sessionID)

	renderPage(w, status, "form", data)
}

func (h *ResetHandlers) renderInvalid(w http.ResponseWriter, status int, notice string) {
	data := newPageData(h.cfg.Site, "Reset password")
	data.Notice = notice

	renderPage(w, status, "invalid", data)
}
