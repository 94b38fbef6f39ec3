package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	apperrors "github.com/FahadAltaf/PropPulse/internal/errors"
	"github.com/FahadAltaf/PropPulse/internal/models"
)

// InvalidLinkNotice is shown when a recovery link cannot be exchanged.
const InvalidLinkNotice = "Invalid or expired reset link. Please request a new one."

// DefaultSettleDelay is how long Check waits before reading the link.
const DefaultSettleDelay = 500 * time.Millisecond

// Validity is the state of a visit's recovery session.
type Validity int

const (
	// Checking is the initial state. A visit whose link matches no
	// matcher stays here.
	Checking Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Checking:
		return "checking"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Validity(%d)", int(v))
	}
}

// Outcome is the result of Check.
type Outcome struct {
	Validity Validity
	// Session is set when Validity is Valid.
	Session *models.Session
	// Matcher names the matcher that decided the outcome.
	Matcher string
	// CleanURL is the link with fragment and query removed. Callers
	// replace the visible URL with it so the one-time token is not kept
	// in history or shared on reload.
	CleanURL string
	// Notice is the user-facing message for Invalid.
	Notice string
	// Err carries the cause for Invalid, wrapping ErrInvalidLink.
	Err error
}

// Config configures a Flow.
type Config struct {
	Identity Identity
	// Matchers overrides DefaultMatchers.
	Matchers    []Matcher
	SettleDelay time.Duration
	// LoginURL is the entry point a successful reset redirects to.
	LoginURL string
	Logger   *slog.Logger
}

// Flow validates recovery links and applies the password change. It keeps
// no per-visit state; the caller owns the session between Check and
// Submit.
type Flow struct {
	identity    Identity
	matchers    []Matcher
	settleDelay time.Duration
	loginURL    string
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewFlow creates a Flow. A nil logger discards output.
func NewFlow(cfg Config) *Flow {
	matchers := cfg.Matchers
	if matchers == nil {
		matchers = DefaultMatchers(cfg.Identity)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = "/auth/login"
	}

	return &Flow{
		identity:    cfg.Identity,
		matchers:    matchers,
		settleDelay: cfg.SettleDelay,
		loginURL:    loginURL,
		logger:      logger,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check waits the settling delay and then runs the matchers in order.
// The first matcher that recognises the link decides the outcome.
// Matchers run one after another, never concurrently.
//
// If the context ends during the delay the outcome stays Checking with
// Err set to the context error.
func (f *Flow) Check(ctx context.Context, loc Location) Outcome {
	if err := f.sleep(ctx, f.settleDelay); err != nil {
		return Outcome{Validity: Checking, Err: err}
	}

	for _, m := range f.matchers {
		r := m.Match(ctx, loc)

		switch r.Kind {
		case NoMatch:
			continue
		case MatchedError:
			f.logger.Warn("recovery link rejected",
				slog.String("matcher", m.Name()),
				slog.String("error", r.Err.Error()),
			)

			return Outcome{
				Validity: Invalid,
				Matcher:  m.Name(),
				Notice:   InvalidLinkNotice,
				Err:      fmt.Errorf("%w: %w", apperrors.ErrInvalidLink, r.Err),
			}
		case MatchedSession:
			f.logger.Info("recovery session established",
				slog.String("matcher", m.Name()),
				slog.String("user_id", r.Session.User.ID),
			)

			return Outcome{
				Validity: Valid,
				Session:  r.Session,
				Matcher:  m.Name(),
				CleanURL: cleanURL(loc),
			}
		}
	}

	// TODO: a link with no recognised parameters never leaves Checking and
	// the page spins forever. Decide with product whether this should
	// resolve to Invalid instead.
	f.logger.Debug("no recovery parameters recognised")

	return Outcome{Validity: Checking}
}

func cleanURL(loc Location) string {
	if loc.Path == "" {
		return "/"
	}

	return loc.Path
}

// LoginRedirect returns the login entry point with the reset success
// indicator appended.
func (f *Flow) LoginRedirect() string {
	u, err := url.Parse(f.loginURL)
	if err != nil {
		return f.loginURL + "?reset=success"
	}

	q := u.Query()
	q.Set("reset", "success")
	u.RawQuery = q.Encode()

	return u.String()
}
