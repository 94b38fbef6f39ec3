package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/FahadAltaf/PropPulse/internal/config"
	"github.com/FahadAltaf/PropPulse/internal/identity"
	"github.com/FahadAltaf/PropPulse/internal/logging"
)

// ForgotPasswordNotice is shown after a reset email is requested. It does
// not reveal whether the address has an account.
const ForgotPasswordNotice = "If your email exists in our system, a reset link has been sent."

const (
	forgotRateWindow  = 15 * time.Minute
	maxForgotRequests = 5

	invalidEmailMessage = "Please enter a valid email address."
	sendFailedMessage   = "Failed to send reset email. Please try again."
)

// PasswordResetMailer asks the provider to email a recovery link.
type PasswordResetMailer interface {
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// ForgotConfig holds the dependencies of the forgot-password handler.
type ForgotConfig struct {
	Mailer PasswordResetMailer
	// RedirectTo is the absolute reset-password URL placed in the email.
	RedirectTo string
	Site       config.SiteSettings
	Logger     *slog.Logger
}

// HandleForgotPassword serves GET and POST /auth/forgot-password. Every
// POST counts against a per-IP limit because each one can send an email.
func HandleForgotPassword(cfg ForgotConfig) http.HandlerFunc {
	limiter := newRateLimiter(forgotRateWindow, maxForgotRequests)

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			renderPage(w, http.StatusOK, "forgot", newPageData(cfg.Site, "Forgot password"))
		case http.MethodPost:
			handleForgotPOST(w, r, cfg, limiter)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleForgotPOST(w http.ResponseWriter, r *http.Request, cfg ForgotConfig, limiter *rateLimiter) {
	logger := logging.With(r.Context(), cfg.Logger)
	data := newPageData(cfg.Site, "Forgot password")

	ip := remoteIP(r)
	if limiter.limited(ip) {
		logger.Warn("forgot-password rate limited", slog.String("remote_addr", ip))

		data.Error = tooManyAttemptsNotice
		renderPage(w, http.StatusTooManyRequests, "forgot", data)

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		data.Error = badRequestMessage
		renderPage(w, http.StatusBadRequest, "forgot", data)

		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	data.Email = email

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		data.Error = invalidEmailMessage
		renderPage(w, http.StatusBadRequest, "forgot", data)

		return
	}

	limiter.record(ip)

	if err := cfg.Mailer.ResetPasswordForEmail(r.Context(), email, cfg.RedirectTo); err != nil {
		logger.Warn("requesting reset email", slog.String("error", err.Error()))

		status := http.StatusUnprocessableEntity
		if identity.IsTransient(err) {
			status = http.StatusBadGateway
		}

		data.Error = identity.UserMessage(err, sendFailedMessage)
		renderPage(w, status, "forgot", data)

		return
	}

	logger.Info("reset email requested", slog.String("remote_addr", ip))

	data.Email = ""
	data.Notice = ForgotPasswordNotice
	renderPage(w, http.StatusOK, "forgot", data)
}
