package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/FahadAltaf/PropPulse/internal/config"
	"github.com/FahadAltaf/PropPulse/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	emails     []string
	redirectTo string
	err        error
}

func (m *stubMailer) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	m.emails = append(m.emails, email)
	m.redirectTo = redirectTo
	return m.err
}

func testForgotHandler(m *stubMailer) http.HandlerFunc {
	return HandleForgotPassword(ForgotConfig{
		Mailer:     m,
		RedirectTo: "https://app.example.com/auth/reset-password",
		Site:       config.DefaultSiteSettings(),
		Logger:     testLogger(),
	})
}

func postForgot(handler http.HandlerFunc, email string) *httptest.ResponseRecorder {
	form := url.Values{"email": {email}}
	req := httptest.NewRequest("POST", ForgotPasswordPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestForgotGET_RendersForm(t *testing.T) {
	rec := httptest.NewRecorder()
	testForgotHandler(&stubMailer{})(rec, httptest.NewRequest("GET", ForgotPasswordPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="email"`)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestForgotPOST_SendsLink(t *testing.T) {
	m := &stubMailer{}
	rec := postForgot(testForgotHandler(m), "  jane@example.com ")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ForgotPasswordNotice)
	assert.NotContains(t, rec.Body.String(), `name="email"`)
	require.Equal(t, []string{"jane@example.com"}, m.emails)
	assert.Equal(t, "https://app.example.com/auth/reset-password", m.redirectTo)
}

func TestForgotPOST_InvalidEmail(t *testing.T) {
	for _, email := range []string{"", "not-an-email", "Jane <jane@example.com>"} {
		t.Run(email, func(t *testing.T) {
			m := &stubMailer{}
			rec := postForgot(testForgotHandler(m), email)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), invalidEmailMessage)
			assert.Empty(t, m.emails)
		})
	}
}

func TestForgotPOST_ProviderMessageShown(t *testing.T) {
	m := &stubMailer{err: &identity.APIError{
		Status:  http.StatusTooManyRequests,
		Message: "For security purposes, you can only request this once every 60 seconds",
	}}
	rec := postForgot(testForgotHandler(m), "jane@example.com")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "only request this once every 60 seconds")
	assert.Contains(t, rec.Body.String(), `value="jane@example.com"`)
}

func TestForgotPOST_ProviderUnavailable(t *testing.T) {
	m := &stubMailer{err: &identity.TransientError{Err: errors.New("connection refused")}}
	rec := postForgot(testForgotHandler(m), "jane@example.com")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), sendFailedMessage)
}

func TestForgotPOST_RateLimited(t *testing.T) {
	m := &stubMailer{}
	handler := testForgotHandler(m)

	for i := 0; i < maxForgotRequests; i++ {
		require.Equal(t, http.StatusOK, postForgot(handler, "jane@example.com").Code)
	}

	rec := postForgot(handler, "jane@example.com")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, m.emails, maxForgotRequests)
}

func TestForgotPassword_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	testForgotHandler(&stubMailer{})(rec, httptest.NewRequest("PUT", ForgotPasswordPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
