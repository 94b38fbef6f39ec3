package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FahadAltaf/PropPulse/internal/auth"
	"github.com/FahadAltaf/PropPulse/internal/config"
	"github.com/FahadAltaf/PropPulse/internal/identity"
	"github.com/FahadAltaf/PropPulse/internal/logging"
	"github.com/FahadAltaf/PropPulse/internal/recovery"
	"github.com/FahadAltaf/PropPulse/internal/server"
	"github.com/FahadAltaf/PropPulse/internal/state"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("proppulse-auth starting",
		slog.String("version", Version),
		slog.String("environment", cfg.Environment),
	)

	site := config.DefaultSiteSettings()
	if cfg.SiteSettingsFile != "" {
		site, err = config.LoadSiteSettings(cfg.SiteSettingsFile)
		if err != nil {
			return fmt.Errorf("loading site settings: %w", err)
		}
	}

	// A nil *state.State must not become a non-nil Persister.
	var persist auth.Persister
	if cfg.StateDBPath != "" {
		appState, err := state.LoadAt(cfg.StateDBPath)
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}
		defer appState.Close()

		persist = appState
		logger.Info("persisting recovery sessions", slog.String("path", cfg.StateDBPath))
	}

	store := auth.NewStore(persist, logger)
	defer store.Stop()

	client := identity.NewClient(identity.ClientConfig{
		BaseURL:   cfg.SupabaseURL,
		AnonKey:   cfg.SupabaseAnonKey,
		JWTSecret: cfg.JWTSecret,
	})

	flow := recovery.NewFlow(recovery.Config{
		Identity:    client,
		SettleDelay: cfg.SettleDelay,
		LoginURL:    cfg.LoginURL,
		Logger:      logger.With(slog.String("component", "recovery")),
	})

	handler := server.NewMux(server.MuxConfig{
		Reset: auth.NewResetHandlers(auth.ResetConfig{
			Store:         store,
			Flow:          flow,
			Site:          site,
			SessionTTL:    cfg.SessionTTL,
			SecureCookies: cfg.IsProduction(),
			Logger:        logger,
		}),
		Forgot: auth.ForgotConfig{
			Mailer:     client,
			RedirectTo: cfg.ResetPasswordURL(),
			Site:       site,
			Logger:     logger,
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("listen", cfg.ListenAddr),
			slog.String("public_url", cfg.PublicURL),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
