package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/pkg/loginflow"
	"github.com/secureauth/secureauth/pkg/registry"
	"github.com/secureauth/secureauth/pkg/sessions"
	tg "github.com/secureauth/secureauth/pkg/tokengenerator"
)

const testJwtSecret = "test-secret"

func setupRouter(t *testing.T) chi.Router {
	t.Helper()

	repo := registry.NewInMemoryRegistryRepository()
	flowService := loginflow.NewFlowService(repo, sessions.NewSessionService(), nil)
	tokenGen := tg.NewJwtTokenGenerator(testJwtSecret, "secureauth", "secureauth-web")
	jwtAuth := jwtauth.New("HS256", []byte(testJwtSecret), nil)

	handle := NewHandle(
		WithFlowService(flowService),
		WithTokenGenerator(tokenGen),
		WithJwtAuth(jwtAuth),
		WithSessionExpiry(time.Hour),
	)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		handle.RegisterRoutes(r)
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func adminCookies(t *testing.T, router http.Handler) []*http.Cookie {
	t.Helper()
	w := postJSON(t, router, "/api/login", LoginRequest{Username: "admin", Password: "admin", Role: "admin"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := setupRouter(t)

	w := postJSON(t, router, "/api/login", LoginRequest{Username: "admin", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body ErrorResponse
	decodeBody(t, w, &body)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Code)
}

func TestAdminRoutesRequireAdminSession(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/registry", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	router := setupRouter(t)
	admin := adminCookies(t, router)

	t.Run("admin creates the account", func(t *testing.T) {
		w := postJSON(t, router, "/api/admin/accounts", CreateAccountRequest{Username: "bob", Password: "bob"}, admin)
		require.Equal(t, http.StatusCreated, w.Code)

		// Duplicate creation conflicts.
		w = postJSON(t, router, "/api/admin/accounts", CreateAccountRequest{Username: "bob", Password: "bob"}, admin)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("first login forces a reset", func(t *testing.T) {
		w := postJSON(t, router, "/api/login", LoginRequest{Username: "bob", Password: "bob"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result loginflow.LoginResult
		decodeBody(t, w, &result)
		assert.Equal(t, loginflow.StagePasswordReset, result.Stage)
		assert.Equal(t, "bob", result.OldPassword)
	})

	t.Run("reset then provision and confirm", func(t *testing.T) {
		w := postJSON(t, router, "/api/password/reset", ResetPasswordRequest{
			Username:           "bob",
			CarriedOldPassword: "bob",
			OldPassword:        "bob",
			NewPassword:        "Valid123!",
			ConfirmPassword:    "Valid123!",
		}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result loginflow.LoginResult
		decodeBody(t, w, &result)
		assert.Equal(t, loginflow.StageQRSetup, result.Stage)

		w = postJSON(t, router, "/api/totp/provision", ProvisionRequest{
			Username:     "bob",
			UserAgent:    "Mozilla/5.0",
			ScreenWidth:  1920,
			ScreenHeight: 1080,
		}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var provision loginflow.ProvisionResult
		decodeBody(t, w, &provision)
		assert.Len(t, provision.Secret, 16)
		assert.Contains(t, provision.URI, "otpauth://totp/SecureAuth:bob")
		require.Len(t, provision.DeviceID, 12)

		w = postJSON(t, router, "/api/totp/confirm", ConfirmRequest{
			Username: "bob",
			Code:     "123456",
			DeviceID: provision.DeviceID,
		}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		decodeBody(t, w, &result)
		assert.Equal(t, loginflow.StageLogin, result.Stage)
	})

	t.Run("second login runs the otp challenge", func(t *testing.T) {
		w := postJSON(t, router, "/api/login", LoginRequest{Username: "bob", Password: "Valid123!"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result loginflow.LoginResult
		decodeBody(t, w, &result)
		assert.Equal(t, loginflow.StageOTPChallenge, result.Stage)
		pending := w.Result().Cookies()
		require.NotEmpty(t, pending)

		// Wrong format is rejected without consuming the challenge.
		w = postJSON(t, router, "/api/otp/challenge", ChallengeRequest{Code: "abc"}, pending)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// Surrounding whitespace is trimmed at the boundary.
		w = postJSON(t, router, "/api/otp/challenge", ChallengeRequest{Code: " 654321 "}, pending)
		require.Equal(t, http.StatusOK, w.Code)
		decodeBody(t, w, &result)
		assert.Equal(t, loginflow.StageAuthenticated, result.Stage)
		assert.Equal(t, "bob", result.Username)
	})

	t.Run("registry shows the enrolled account", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/registry", nil)
		for _, c := range admin {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var entries []loginflow.RegistryEntry
		decodeBody(t, w, &entries)
		require.Len(t, entries, 2)

		var bob loginflow.RegistryEntry
		for _, entry := range entries {
			if entry.Username == "bob" {
				bob = entry
			}
		}
		assert.True(t, bob.HasProfile)
		assert.Equal(t, registry.TotpEnabledYes, bob.TotpEnabled)
		assert.NotEmpty(t, bob.DeviceID)
	})
}

func TestChallengeWithoutPendingLogin(t *testing.T) {
	router := setupRouter(t)

	w := postJSON(t, router, "/api/otp/challenge", ChallengeRequest{Code: "123456"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	router := setupRouter(t)
	admin := adminCookies(t, router)

	w := postJSON(t, router, "/api/logout", struct{}{}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestEraseRequiresConfirmation(t *testing.T) {
	router := setupRouter(t)
	admin := adminCookies(t, router)

	w := postJSON(t, router, "/api/admin/erase", EraseRequest{Confirmed: false}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/admin/erase", EraseRequest{Confirmed: true}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	var body StatusResponse
	decodeBody(t, w, &body)
	assert.Equal(t, "erased", body.Status)
}
