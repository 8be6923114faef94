package tokengenerator

import (
	"net/http"
	"time"
)

// DefaultSessionCookieName is the cookie the API layer stores the
// session token under.
const DefaultSessionCookieName = "secureauth_session"

// SessionCookie writes and clears the single session cookie the flow
// uses. The flow only ever carries one token per browser, so the cookie
// name is fixed at construction instead of passed per call.
type SessionCookie struct {
	Name     string
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// NewSessionCookie creates a session cookie helper. An empty name falls
// back to DefaultSessionCookieName.
func NewSessionCookie(name string, httpOnly, secure bool) *SessionCookie {
	if name == "" {
		name = DefaultSessionCookieName
	}
	return &SessionCookie{
		Name:     name,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Set stores the session token on the response, expiring with the token
func (c *SessionCookie) Set(w http.ResponseWriter, tokenValue string, expire time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Path:     c.Path,
		Value:    tokenValue,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Clear drops the session cookie from the browser
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	})
}

// Read returns the session token from the request, or "" when the cookie
// is absent.
func (c *SessionCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
