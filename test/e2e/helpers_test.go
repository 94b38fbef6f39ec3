package e2e_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FahadAltaf/PropPulse/internal/auth"
	"github.com/FahadAltaf/PropPulse/internal/config"
	"github.com/FahadAltaf/PropPulse/internal/identity"
	"github.com/FahadAltaf/PropPulse/internal/recovery"
	"github.com/FahadAltaf/PropPulse/internal/server"
	"github.com/FahadAltaf/PropPulse/internal/state"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testAnonKey   = "anon-key"
	testJWTSecret = "super-secret-jwt-key"
	testUserID    = "8d0fd2b3-9ca6-4a2e-9a1b-2f4f7c1c0e11"
	testEmail     = "agent@example.com"
	goodTokenHash = "pkce_good_hash"
	oldPassword   = "OldPassw0rd"
)

// fakeGoTrue is a minimal identity provider. It issues signed access
// tokens, accepts one recovery token hash and tracks the user's password.
type fakeGoTrue struct {
	t        *testing.T
	mu       sync.Mutex
	password string
	tokens   map[string]bool // live access tokens
	logouts  int
	recovers []url.Values
	srv      *httptest.Server
}

func newFakeGoTrue(t *testing.T) *fakeGoTrue {
	t.Helper()
	f := &fakeGoTrue{t: t, password: oldPassword, tokens: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/verify", f.handleVerify)
	mux.HandleFunc("/auth/v1/user", f.handleUser)
	mux.HandleFunc("/auth/v1/logout", f.handleLogout)
	mux.HandleFunc("/auth/v1/recover", f.handleRecover)

	f.srv = httptest.NewServer(f.requireAPIKey(mux))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoTrue) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != testAnonKey {
			writeGoTrueError(w, http.StatusUnauthorized, "no_api_key", "No API key found in request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// issueToken signs a new access token and marks it live.
func (f *fakeGoTrue) issueToken(expiresAt time.Time) string {
	f.t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   testUserID,
		"email": testEmail,
		"role":  "authenticated",
		"exp":   expiresAt.Unix(),
	})
	signed, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(f.t, err)

	f.mu.Lock()
	f.tokens[signed] = true
	f.mu.Unlock()
	return signed
}

func (f *fakeGoTrue) bearerLive(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	return token, f.tokens[token]
}

func (f *fakeGoTrue) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type      string `json:"type"`
		TokenHash string `json:"token_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Type != "recovery" || body.TokenHash != goodTokenHash {
		writeGoTrueError(w, http.StatusForbidden, "otp_expired", "Email link is invalid or has expired")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  f.issueToken(time.Now().Add(time.Hour)),
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-from-verify",
		"user":          map[string]string{"id": testUserID, "email": testEmail},
	})
}

func (f *fakeGoTrue) handleUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.bearerLive(r); !ok {
		writeGoTrueError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"id": testUserID, "email": testEmail})
	case http.MethodPut:
		var body struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		if body.Password == f.password {
			writeGoTrueError(w, http.StatusUnprocessableEntity, "same_password", "New password should be different from the old password.")
			return
		}
		f.password = body.Password
		writeJSON(w, http.StatusOK, map[string]string{"id": testUserID, "email": testEmail})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeGoTrue) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := f.bearerLive(r)
	if !ok {
		writeGoTrueError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}

	f.mu.Lock()
	delete(f.tokens, token)
	f.logouts++
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGoTrue) handleRecover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.recovers = append(f.recovers, url.Values{
		"email":       {body.Email},
		"redirect_to": {r.URL.Query().Get("redirect_to")},
	})
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeGoTrue) Password() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.password
}

func (f *fakeGoTrue) Logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

func (f *fakeGoTrue) Recovers() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.recovers...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGoTrueError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

// harness wires the real service stack against a fake provider.
type harness struct {
	gotrue *fakeGoTrue
	srv    *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gotrue := newFakeGoTrue(t)

	db, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := auth.NewStore(db, logger)
	t.Cleanup(store.Stop)

	idClient := identity.NewClient(identity.ClientConfig{
		BaseURL:   gotrue.srv.URL,
		AnonKey:   testAnonKey,
		JWTSecret: testJWTSecret,
	})

	site := config.DefaultSiteSettings()
	handler := server.NewMux(server.MuxConfig{
		Reset: auth.NewResetHandlers(auth.ResetConfig{
			Store:      store,
			Flow:       recovery.NewFlow(recovery.Config{Identity: idClient, SettleDelay: time.Millisecond, Logger: logger}),
			Site:       site,
			SessionTTL: 15 * time.Minute,
			Logger:     logger,
		}),
		Forgot: auth.ForgotConfig{
			Mailer:     idClient,
			RedirectTo: "https://app.example.com" + auth.ResetPasswordPath,
			Site:       site,
			Logger:     logger,
		},
		Logger: logger,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &harness{gotrue: gotrue, srv: srv, client: client}
}

type response struct {
	status   int
	location string
	cookies  []*http.Cookie
	body     string
}

func (h *harness) do(t *testing.T, method, path string, form url.Values, cookies []*http.Cookie) response {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		cookies:  resp.Cookies(),
		body:     string(b),
	}
}

// verify posts what the checking page relays and returns the response.
func (h *harness) verify(t *testing.T, fragment, query string) response {
	t.Helper()
	return h.do(t, "POST", auth.VerifyPath, url.Values{"fragment": {fragment}, "query": {query}}, nil)
}

var csrfRe = regexp.MustCompile(`name="csrf_token" value="([a-f0-9]+)"`)

// formCSRF loads the reset form the way the checking page does after
// the redirect (an empty relay plus the session cookie) and returns its
// CSRF token.
func (h *harness) formCSRF(t *testing.T, cookies []*http.Cookie) string {
	t.Helper()
	resp := h.do(t, "POST", auth.VerifyPath, url.Values{"fragment": {""}, "query": {""}}, cookies)
	require.Equal(t, http.StatusOK, resp.status)

	m := csrfRe.FindStringSubmatch(resp.body)
	require.Len(t, m, 2, "CSRF token not found in form")
	return m[1]
}

func (h *harness) submit(t *testing.T, cookies []*http.Cookie, password, confirm string) response {
	t.Helper()
	return h.do(t, "POST", auth.ResetPasswordPath, url.Values{
		"csrf_token":       {h.formCSRF(t, cookies)},
		"password":         {password},
		"confirm_password": {confirm},
	}, cookies)
}
