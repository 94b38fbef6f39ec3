package recovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/FahadAltaf/PropPulse/internal/models"
)

// recoveryType is the value of the type parameter on recovery links.
const recoveryType = "recovery"

// Location is the part of an inbound link the matchers look at. It is
// captured once per visit.
type Location struct {
	Path     string
	Fragment string
	Query    url.Values
}

// ParseLocation splits a raw URL into a Location. The fragment is kept in
// its escaped form so token values decode the same way as the query.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Path:     u.Path,
		Fragment: u.EscapedFragment(),
		Query:    u.Query(),
	}, nil
}

// fragmentValues parses the fragment as a query string. Malformed pairs
// are skipped rather than failing the whole fragment.
func (l Location) fragmentValues() url.Values {
	v, _ := url.ParseQuery(strings.TrimPrefix(l.Fragment, "#"))
	return v
}

// ResultKind tags a matcher result.
type ResultKind int

const (
	// NoMatch means the matcher did not recognise the link and the next
	// matcher should run.
	NoMatch ResultKind = iota
	// MatchedSession means the link was recognised and exchanged.
	MatchedSession
	// MatchedError means the link was recognised but the exchange failed.
	MatchedError
)

// Result is what a matcher returns. Session is set for MatchedSession and
// Err for MatchedError.
type Result struct {
	Kind    ResultKind
	Session *models.Session
	Err     error
}

func noMatch() Result { return Result{Kind: NoMatch} }

func matched(s *models.Session, err error) Result {
	if err != nil {
		return Result{Kind: MatchedError, Err: err}
	}

	// The provider accepted the token but handed back no session. The
	// link is not usable here, so let the next matcher try.
	if s == nil {
		return noMatch()
	}

	return Result{Kind: MatchedSession, Session: s}
}

// Matcher recognises one delivery shape of a recovery link.
type Matcher interface {
	Name() string
	Match(ctx context.Context, loc Location) Result
}

// FragmentMatcher handles #access_token=...&refresh_token=...&type=recovery.
type FragmentMatcher struct {
	Identity Identity
}

func (FragmentMatcher) Name() string { return "fragment" }

func (m FragmentMatcher) Match(ctx context.Context, loc Location) Result {
	if loc.Fragment == "" {
		return noMatch()
	}

	v := loc.fragmentValues()

	accessToken := v.Get("access_token")
	if v.Get("type") != recoveryType || accessToken == "" {
		return noMatch()
	}

	return matched(m.Identity.EstablishSession(ctx, accessToken, v.Get("refresh_token")))
}

// QueryMatcher handles ?token_hash=...&type=recovery.
type QueryMatcher struct {
	Identity Identity
}

func (QueryMatcher) Name() string { return "query" }

func (m QueryMatcher) Match(ctx context.Context, loc Location) Result {
	tokenHash := loc.Query.Get("token_hash")
	if loc.Query.Get("type") != recoveryType || tokenHash == "" {
		return noMatch()
	}

	return matched(m.Identity.ExchangeRecoveryHash(ctx, tokenHash))
}

// DefaultMatchers returns the matchers in precedence order: fragment
// first, then query.
func DefaultMatchers(id Identity) []Matcher {
	return []Matcher{
		FragmentMatcher{Identity: id},
		QueryMatcher{Identity: id},
	}
}
