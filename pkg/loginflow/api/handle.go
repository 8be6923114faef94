// Package api exposes the credential lifecycle over HTTP. Session state
// lives in a signed cookie; each request rebuilds the session from the
// cookie claims and each state change mints a fresh token.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/secureauth/secureauth/pkg/device"
	"github.com/secureauth/secureauth/pkg/errors"
	"github.com/secureauth/secureauth/pkg/loginflow"
	"github.com/secureauth/secureauth/pkg/registry"
	"github.com/secureauth/secureauth/pkg/sessions"
	tg "github.com/secureauth/secureauth/pkg/tokengenerator"
)

const DefaultSessionExpiry = 30 * time.Minute

type Handle struct {
	flowService   *loginflow.FlowService
	tokenGen      tg.TokenGenerator
	cookie        *tg.SessionCookie
	jwtAuth       *jwtauth.JWTAuth
	sessionExpiry time.Duration
}

type Option func(*Handle)

func NewHandle(opts ...Option) *Handle {
	h := &Handle{
		cookie:        tg.NewSessionCookie(tg.DefaultSessionCookieName, true, false),
		sessionExpiry: DefaultSessionExpiry,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func WithFlowService(fs *loginflow.FlowService) Option {
	return func(h *Handle) {
		h.flowService = fs
	}
}

func WithTokenGenerator(gen tg.TokenGenerator) Option {
	return func(h *Handle) {
		h.tokenGen = gen
	}
}

func WithSessionCookie(c *tg.SessionCookie) Option {
	return func(h *Handle) {
		h.cookie = c
	}
}

func WithJwtAuth(ja *jwtauth.JWTAuth) Option {
	return func(h *Handle) {
		h.jwtAuth = ja
	}
}

func WithSessionExpiry(expiry time.Duration) Option {
	return func(h *Handle) {
		h.sessionExpiry = expiry
	}
}

// RegisterRoutes mounts the lifecycle and admin routes.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.PostLogin)
	r.Post("/password/reset", h.PostResetPassword)
	r.Post("/totp/provision", h.PostProvisionTotp)
	r.Post("/totp/confirm", h.PostConfirmTotp)
	r.Post("/otp/challenge", h.PostChallengeOtp)
	r.Post("/otp/abort", h.PostAbortChallenge)
	r.Post("/logout", h.PostLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.Verifier())
		r.Use(h.RequireAdmin)
		r.Get("/admin/registry", h.GetRegistry)
		r.Post("/admin/accounts", h.PostCreateAccount)
		r.Post("/admin/erase", h.PostErase)
	})
}

// Verifier checks the session token from the Authorization header or the
// session cookie.
func (h *Handle) Verifier() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(h.jwtAuth, jwtauth.TokenFromHeader, h.tokenFromCookie)(next)
	}
}

// RequireAdmin gates the management routes on an authenticated admin
// session.
func (h *Handle) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
		authenticated, _ := claims["authenticated_username"].(string)
		if authenticated != registry.BootstrapUsername {
			slog.Warn("admin route rejected", "authenticated_username", authenticated)
			http.Error(w, "admin session required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handle) tokenFromCookie(r *http.Request) string {
	return h.cookie.Read(r)
}

// sessionFromRequest rebuilds the lifecycle session from the cookie.
// A missing or unparseable cookie yields a fresh session.
func (h *Handle) sessionFromRequest(r *http.Request) *sessions.Session {
	sess := sessions.NewSession()
	tokenStr := h.cookie.Read(r)
	if tokenStr == "" {
		return sess
	}
	token, err := h.tokenGen.ParseToken(tokenStr)
	if err != nil {
		return sess
	}
	claims, err := tg.SessionClaims(token)
	if err != nil {
		return sess
	}
	sess.PendingUsername = claims.PendingUsername
	sess.AuthenticatedUsername = claims.AuthenticatedUsername
	return sess
}

// writeSession mints a token for the session markers and sets the cookie.
func (h *Handle) writeSession(w http.ResponseWriter, sess *sessions.Session) {
	subject := sess.AuthenticatedUsername
	if subject == "" {
		subject = sess.PendingUsername
	}
	if subject == "" {
		h.cookie.Clear(w)
		return
	}
	tokenStr, expiry, err := h.tokenGen.GenerateToken(subject, h.sessionExpiry, sess.PendingUsername, sess.AuthenticatedUsername)
	if err != nil {
		slog.Error("failed to mint session token", "err", err)
		return
	}
	h.cookie.Set(w, tokenStr, expiry)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	render.Status(r, errors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{Code: string(code), Message: err.Error()})
}

// PostLogin handles POST /login.
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var data LoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}

	sess := h.sessionFromRequest(r)
	result, err := h.flowService.Login(r.Context(), sess, data.Username, data.Password, data.Role)
	if err != nil {
		renderError(w, r, err)
		return
	}

	h.writeSession(w, sess)
	render.JSON(w, r, result)
}

// PostResetPassword handles POST /password/reset.
func (h *Handle) PostResetPassword(w http.ResponseWriter, r *http.Request) {
	var data ResetPasswordRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}

	result, err := h.flowService.ResetPassword(r.Context(), data.Username, data.CarriedOldPassword, data.OldPassword, data.NewPassword, data.ConfirmPassword)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// PostProvisionTotp handles POST /totp/provision.
func (h *Handle) PostProvisionTotp(w http.ResponseWriter, r *http.Request) {
	var data ProvisionRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}

	var fingerprint device.FingerprintData
	if err := copier.Copy(&fingerprint, &data); err != nil {
		renderError(w, r, errors.Wrap(err, errors.ErrCodeInternal, "failed to map device attributes"))
		return
	}

	result, err := h.flowService.ProvisionTotp(r.Context(), data.Username, fingerprint)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// PostConfirmTotp handles POST /totp/confirm.
func (h *Handle) PostConfirmTotp(w http.ResponseWriter, r *http.Request) {
	var data ConfirmRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}

	// Surrounding whitespace is trimmed at the boundary; the strict 6-digit
	// check stays in the flow service.
	result, err := h.flowService.ConfirmTotp(r.Context(), data.Username, strings.TrimSpace(data.Code), data.DeviceID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// PostChallengeOtp handles POST /otp/challenge.
func (h *Handle) PostChallengeOtp(w http.ResponseWriter, r *http.Request) {
	var data ChallengeRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}

	sess := h.sessionFromRequest(r)
	result, err := h.flowService.ChallengeOtp(r.Context(), sess, strings.TrimSpace(data.Code))
	if err != nil {
		renderError(w, r, err)
		return
	}

	h.writeSession(w, sess)
	render.JSON(w, r, result)
}

// PostAbortChallenge handles POST /otp/abort.
func (h *Handle) PostAbortChallenge(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	h.flowService.AbortChallenge(sess)
	h.writeSession(w, sess)
	render.JSON(w, r, StatusResponse{Status: "aborted"})
}

// PostLogout handles POST /logout.
func (h *Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	h.flowService.Logout(sess)
	h.cookie.Clear(w)
	render.JSON(w, r, StatusResponse{Status: "logged_out"})
}

// GetRegistry handles GET /admin/registry.
func (h *Handle) GetRegistry(w http.ResponseWriter, r *http.Request) {
	entries, err := h.flowService.RegistrySnapshot(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}

// PostCreateAccount handles POST /admin/accounts.
func (h *Handle) PostCreateAccount(w http.ResponseWriter, r *http.Request) {
	var data CreateAccountRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}

	if err := h.flowService.CreateAccount(r.Context(), data.Username, data.Password); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, StatusResponse{Status: "created"})
}

// PostErase handles POST /admin/erase. The registry is only wiped when
// the request carries an explicit confirmation.
func (h *Handle) PostErase(w http.ResponseWriter, r *http.Request) {
	var data EraseRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse request body"))
		return
	}
	if !data.Confirmed {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "erase requires confirmation"))
		return
	}

	if err := h.flowService.EraseAll(r.Context()); err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, StatusResponse{Status: "erased"})
}
