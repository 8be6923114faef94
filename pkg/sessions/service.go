// Package sessions models the tab-scoped authentication markers: the user
// awaiting an OTP challenge and the authenticated user. Sessions are
// explicit values handed through the flow, never process globals, so several
// can coexist (one per browser tab, or per test). Nothing here is persisted.
//
// Client-controlled storage means this is not a security boundary; routes
// gate on the markers for flow correctness, not protection.
package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/secureauth/pkg/errors"
)

// Session holds the two tab-lifetime markers. At most one is set at a time
// in practice: pending while an OTP challenge is outstanding, authenticated
// after it succeeds.
type Session struct {
	ID                    uuid.UUID
	PendingUsername       string
	AuthenticatedUsername string
	CreatedAt             time.Time
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
}

// SessionService mutates and queries session markers on behalf of the flow
type SessionService struct{}

// NewSessionService creates a new session service
func NewSessionService() *SessionService {
	return &SessionService{}
}

// BeginChallenge marks username as awaiting an OTP challenge
func (s *SessionService) BeginChallenge(sess *Session, username string) {
	sess.PendingUsername = username
	sess.AuthenticatedUsername = ""
}

// CompleteChallenge promotes the pending user to authenticated and clears
// the pending marker
func (s *SessionService) CompleteChallenge(sess *Session) (string, error) {
	if sess.PendingUsername == "" {
		return "", errors.New(errors.ErrCodeUnauthorized, "no pending challenge")
	}
	username := sess.PendingUsername
	sess.AuthenticatedUsername = username
	sess.PendingUsername = ""
	return username, nil
}

// AbortChallenge clears the pending marker without authenticating
func (s *SessionService) AbortChallenge(sess *Session) {
	sess.PendingUsername = ""
}

// Authenticate sets the authenticated marker directly, bypassing the
// challenge. Used by the admin path only.
func (s *SessionService) Authenticate(sess *Session, username string) {
	sess.AuthenticatedUsername = username
	sess.PendingUsername = ""
}

// Logout clears the authenticated marker. Idempotent.
func (s *SessionService) Logout(sess *Session) {
	sess.AuthenticatedUsername = ""
}

// IsAuthenticated reports whether the session carries an authenticated user
func (s *SessionService) IsAuthenticated(sess *Session) bool {
	return sess.AuthenticatedUsername != ""
}

// PendingUser returns the username awaiting an OTP challenge, if any
func (s *SessionService) PendingUser(sess *Session) (string, bool) {
	return sess.PendingUsername, sess.PendingUsername != ""
}
