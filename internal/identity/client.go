// Package identity talks to the hosted identity provider's GoTrue REST API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/FahadAltaf/PropPulse/internal/errors"
	"github.com/FahadAltaf/PropPulse/internal/models"
	"github.com/tidwall/gjson"
)

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller should retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// APIError is a rejection reported by the provider. Message is safe to
// show to the user.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity API %d (%s): %s", e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("identity API %d: %s", e.Status, e.Message)
}

// UserMessage returns the provider's message from err when there is one,
// otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	return fallback
}

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 1024 * 1024
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the project URL, e.g. https://abc.supabase.co.
	BaseURL string
	// AnonKey is sent as the apikey header on every request.
	AnonKey string
	// JWTSecret, when set, is used to verify HS256 access tokens.
	JWTSecret string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the GoTrue API under <BaseURL>/auth/v1.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	jwtSecret  []byte
	now        func() time.Time
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This prevents bearer tokens from
// leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates an identity API client. If cfg.HTTPClient is nil, a
// client with a 30-second timeout and same-host redirect policy is used.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		jwtSecret:  secret,
		now:        time.Now,
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// errorMessage pulls the human readable message out of a GoTrue error
// body. The field name differs between endpoints and GoTrue versions.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	for _, field := range []string{"msg", "error_description", "message", "error"} {
		if v := gjson.GetBytes(body, field); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}

	return ""
}

func errorCode(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	if v := gjson.GetBytes(body, "error_code"); v.Exists() {
		return v.String()
	}

	// Older GoTrue releases put the HTTP status in "code" and the
	// machine readable code in "error".
	if v := gjson.GetBytes(body, "code"); v.Type == gjson.String {
		return v.Str
	}

	return ""
}

// do sends a JSON request and decodes the response into result. bearer
// selects the Authorization token; empty means the anon key.
func (c *Client) do(ctx context.Context, method, endpoint, bearer string, body, result interface{}) error {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if bearer == "" {
		bearer = c.anonKey
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// The endpoint may carry a query string; strip it from errors since
	// it can hold redirect targets or other request data.
	name := endpoint
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return &TransientError{Err: fmt.Errorf("%w: sending request to %s: %w", apperrors.ErrAPIRequest, name, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(respBody)
		if msg == "" {
			msg = sanitizeResponseBody(respBody)
		}

		apiErr := &APIError{
			Status:  resp.StatusCode,
			Code:    errorCode(respBody),
			Message: msg,
		}

		if isTransientStatus(resp.StatusCode) {
			return &TransientError{Err: fmt.Errorf("%s: %w", name, apiErr)}
		}

		return fmt.Errorf("%s: %w", name, apiErr)
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: decoding response from %s: %w", apperrors.ErrAPIResponse, name, err)
		}
	}

	return nil
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// EstablishSession turns an access/refresh pair from a recovery link into
// a confirmed session. An expired access token is refreshed when a
// refresh token is present. The provider's /user endpoint has the final
// word on whether the token is accepted.
func (c *Client) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	claims, err := c.parseClaims(accessToken)
	if err != nil {
		return nil, fmt.Errorf("establishing session: %w", err)
	}

	session := &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User: models.User{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  claims.Role,
		},
	}

	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	if session.Expired(c.now()) {
		if refreshToken == "" {
			return nil, fmt.Errorf("establishing session: access token expired and no refresh token")
		}

		session, err = c.refresh(ctx, refreshToken)
		if err != nil {
			return nil, fmt.Errorf("establishing session: %w", err)
		}
	}

	user, err := c.getUser(ctx, session.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("establishing session: %w", err)
	}

	session.User = *user

	return session, nil
}

// ExchangeRecoveryHash verifies a recovery token_hash and returns the
// session it unlocks. A nil session with a nil error means the provider
// accepted the hash without issuing a session.
func (c *Client) ExchangeRecoveryHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	req := verifyRequest{
		Type:      "recovery",
		TokenHash: tokenHash,
	}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/verify", "", req, &resp); err != nil {
		return nil, fmt.Errorf("verifying recovery token: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, nil
	}

	return resp.session(c.now()), nil
}

// UpdatePassword sets a new password for the session's user.
func (c *Client) UpdatePassword(ctx context.Context, s *models.Session, password string) error {
	req := updateUserRequest{Password: password}

	if err := c.do(ctx, http.MethodPut, "/user", s.AccessToken, req, nil); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	return nil
}

// SignOut revokes the session's refresh tokens on the provider.
func (c *Client) SignOut(ctx context.Context, s *models.Session) error {
	if err := c.do(ctx, http.MethodPost, "/logout", s.AccessToken, nil, nil); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}

	return nil
}

// ResetPasswordForEmail asks the provider to email a recovery link that
// lands on redirectTo.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	endpoint := "/recover"
	if redirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	if err := c.do(ctx, http.MethodPost, endpoint, "", recoverRequest{Email: email}, nil); err != nil {
		return fmt.Errorf("requesting password reset: %w", err)
	}

	return nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	var resp tokenResponse

	req := refreshRequest{RefreshToken: refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", req, &resp); err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, fmt.Errorf("refreshing session: %w", errNoAccessToken)
	}

	return resp.session(c.now()), nil
}

func (c *Client) getUser(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("fetching user: %w: empty user id", apperrors.ErrAPIResponse)
	}

	return &user, nil
}
