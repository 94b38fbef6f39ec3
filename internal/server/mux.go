// Package server provides HTTP server construction for proppulse-auth.
package server

import (
	"log/slog"
	"net/http"

	"github.com/FahadAltaf/PropPulse/internal/auth"
	"github.com/FahadAltaf/PropPulse/internal/logging"
)

// MuxConfig holds dependencies for building the HTTP handler.
type MuxConfig struct {
	Reset  *auth.ResetHandlers
	Forgot auth.ForgotConfig
	Logger *slog.Logger
}

// NewMux builds the handler serving the password recovery pages, the
// strength check and a health probe. Every request passes through the
// request logging middleware.
func NewMux(cfg MuxConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(auth.ResetPasswordPath, cfg.Reset.ResetPassword)
	mux.HandleFunc(auth.VerifyPath, cfg.Reset.Verify)
	mux.HandleFunc(auth.PasswordStrengthPath, cfg.Reset.PasswordStrength)
	mux.HandleFunc(auth.ForgotPasswordPath, auth.HandleForgotPassword(cfg.Forgot))
	mux.HandleFunc("/healthz", handleHealth)

	return logging.Middleware(cfg.Logger)(mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
