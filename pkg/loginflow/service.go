package loginflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/secureauth/secureauth/pkg/device"
	"github.com/secureauth/secureauth/pkg/digest"
	"github.com/secureauth/secureauth/pkg/errors"
	"github.com/secureauth/secureauth/pkg/login"
	"github.com/secureauth/secureauth/pkg/registry"
	"github.com/secureauth/secureauth/pkg/sessions"
	"github.com/secureauth/secureauth/pkg/twofa"
)

// Stage tells the caller which screen of the credential lifecycle comes next.
type Stage string

const (
	StageLogin         Stage = "LOGIN"
	StagePasswordReset Stage = "PASSWORD_RESET"
	StageQRSetup       Stage = "QR_SETUP"
	StageOTPChallenge  Stage = "OTP_CHALLENGE"
	StageAuthenticated Stage = "AUTHENTICATED"
	StageAdmin         Stage = "ADMIN"
)

// RoleAdmin selects the management login path, which bypasses the
// two-factor lifecycle entirely.
const RoleAdmin = "admin"

// LoginResult reports where the caller lands after a credential check.
// OldPassword is only set when the next stage is PASSWORD_RESET: the
// reset form pre-fills it so the user confirms the current password
// before choosing a new one.
type LoginResult struct {
	Stage       Stage  `json:"stage"`
	Username    string `json:"username"`
	OldPassword string `json:"oldPassword,omitempty"`
}

// ProvisionResult carries everything the enrollment screen needs to
// render: the shared secret, the otpauth URI behind the QR code, and
// the device fingerprint that will be bound on confirmation.
type ProvisionResult struct {
	Secret   string `json:"secret"`
	URI      string `json:"uri"`
	DeviceID string `json:"deviceId"`
}

// RegistryEntry is one row of the admin overview: the credential
// record joined with its lifecycle profile, when one exists.
type RegistryEntry struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	HasProfile   bool   `json:"hasProfile"`
	TotpEnabled  string `json:"totpEnabled,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// FlowService drives the credential lifecycle over a RegistryRepository:
// password login, forced reset, TOTP enrollment, the OTP challenge and
// the admin surface.
type FlowService struct {
	repo     registry.RegistryRepository
	sessions *sessions.SessionService
	policy   login.PasswordPolicyChecker
}

func NewFlowService(repo registry.RegistryRepository, sessionSvc *sessions.SessionService, policy login.PasswordPolicyChecker) *FlowService {
	if policy == nil {
		policy = login.NewDefaultPasswordPolicyChecker(nil)
	}
	return &FlowService{
		repo:     repo,
		sessions: sessionSvc,
		policy:   policy,
	}
}

// Login checks the submitted credentials against the credential table and
// routes the caller to the next lifecycle stage. A first successful login
// creates the lifecycle profile on the fly and forces a password reset.
func (s *FlowService) Login(ctx context.Context, sess *sessions.Session, username, password, role string) (LoginResult, error) {
	admins, err := s.repo.LoadAdmins(ctx)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to load credentials")
	}

	hash := digest.Sum(password)
	var matched bool
	for _, admin := range admins {
		if admin.Username == username && admin.PasswordHash == hash {
			matched = true
			break
		}
	}
	if !matched {
		slog.Info("login failed", "username", username)
		return LoginResult{}, errors.New(errors.ErrCodeInvalidCredentials, "invalid username or password")
	}

	// The role gate comes after the credential check: a bad password on the
	// admin path reads as bad credentials, not as a role rejection.
	if role == RoleAdmin {
		if username != registry.BootstrapUsername {
			slog.Warn("admin login rejected for non-admin account", "username", username)
			return LoginResult{}, errors.New(errors.ErrCodeUnauthorized, "admin access denied")
		}
		s.sessions.Authenticate(sess, username)
		slog.Info("admin login", "username", username)
		return LoginResult{Stage: StageAdmin, Username: username}, nil
	}

	user, found, err := s.repo.LoadUser(ctx, username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to load profile")
	}

	if !found {
		user = registry.User{
			Username:              username,
			PasswordHash:          hash,
			TotpEnabled:           registry.TotpEnabledNo,
			PasswordResetRequired: true,
			CreatedAt:             time.Now().UTC(),
		}
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to create profile")
		}
		slog.Info("profile created on first login", "username", username)
	}

	if user.PasswordResetRequired {
		return LoginResult{Stage: StagePasswordReset, Username: username, OldPassword: password}, nil
	}

	if user.TotpEnabled != registry.TotpEnabledYes {
		return LoginResult{Stage: StageQRSetup, Username: username}, nil
	}

	s.sessions.BeginChallenge(sess, username)
	return LoginResult{Stage: StageOTPChallenge, Username: username}, nil
}

// ResetPassword replaces the account password after verifying the old one.
// carriedOldPassword is the transitional context Login returned with the
// PASSWORD_RESET stage; the re-entered old password is compared against it,
// not against the stored hash. The new hash is written to the lifecycle
// profile first and to the credential table second, so both reads afterwards
// agree.
func (s *FlowService) ResetPassword(ctx context.Context, username, carriedOldPassword, oldPassword, newPassword, confirmPassword string) (LoginResult, error) {
	user, found, err := s.repo.LoadUser(ctx, username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to load profile")
	}
	if !found {
		return LoginResult{}, errors.New(errors.ErrCodeNotFound, "unknown account")
	}

	if oldPassword != carriedOldPassword {
		return LoginResult{}, errors.New(errors.ErrCodeWrongOldPassword, "old password is incorrect")
	}

	if err := s.policy.CheckPasswordComplexity(newPassword); err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodePasswordComplexity, err.Error())
	}

	if newPassword != confirmPassword {
		return LoginResult{}, errors.New(errors.ErrCodeConfirmationMismatch, "password confirmation does not match")
	}

	newHash := digest.Sum(newPassword)
	user.PasswordHash = newHash
	user.PasswordResetRequired = false
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to update profile password")
	}
	if err := s.repo.UpdateAdminPassword(ctx, username, newHash); err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to update credential password")
	}

	slog.Info("password reset", "username", username)
	return LoginResult{Stage: StageQRSetup, Username: username}, nil
}

// ProvisionTotp prepares authenticator enrollment: it derives (or reuses)
// the account's shared secret and fingerprints the enrolling device. The
// fingerprint is returned, not persisted; it only sticks once the user
// confirms with a code.
func (s *FlowService) ProvisionTotp(ctx context.Context, username string, dev device.FingerprintData) (ProvisionResult, error) {
	user, found, err := s.repo.LoadUser(ctx, username)
	if err != nil {
		return ProvisionResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to load profile")
	}
	if !found {
		return ProvisionResult{}, errors.New(errors.ErrCodeNotFound, "unknown account")
	}

	secret := user.TotpSecret
	if secret == "" {
		secret = twofa.DeriveSecret(username, user.PasswordHash)
		user.TotpSecret = secret
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return ProvisionResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to store secret")
		}
		slog.Info("totp secret derived", "username", username)
	}

	return ProvisionResult{
		Secret:   secret,
		URI:      twofa.EnrollmentURI(username, secret),
		DeviceID: device.GenerateFingerprint(dev),
	}, nil
}

// ConfirmTotp completes enrollment: the submitted code is format-checked,
// two-factor is switched on and the enrolling device is bound to the
// account. The user then signs in again from the start.
func (s *FlowService) ConfirmTotp(ctx context.Context, username, code, deviceID string) (LoginResult, error) {
	if !twofa.ValidatePasscodeFormat(code) {
		return LoginResult{}, errors.New(errors.ErrCodeInvalidCode, "code must be 6 digits")
	}

	user, found, err := s.repo.LoadUser(ctx, username)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to load profile")
	}
	if !found {
		return LoginResult{}, errors.New(errors.ErrCodeNotFound, "unknown account")
	}

	user.TotpEnabled = registry.TotpEnabledYes
	user.RegisteredDeviceID = deviceID
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to enable two-factor")
	}

	slog.Info("totp enrollment confirmed", "username", username, "device_id", deviceID)
	return LoginResult{Stage: StageLogin, Username: username}, nil
}

// ChallengeOtp verifies the one-time code for the pending challenge and
// promotes the session to authenticated.
func (s *FlowService) ChallengeOtp(ctx context.Context, sess *sessions.Session, code string) (LoginResult, error) {
	username, pending := s.sessions.PendingUser(sess)
	if !pending {
		return LoginResult{}, errors.New(errors.ErrCodeUnauthorized, "no login in progress")
	}

	if !twofa.ValidatePasscodeFormat(code) {
		return LoginResult{}, errors.New(errors.ErrCodeInvalidCode, "code must be 6 digits")
	}

	if _, err := s.sessions.CompleteChallenge(sess); err != nil {
		return LoginResult{}, err
	}

	slog.Info("otp challenge passed", "username", username)
	return LoginResult{Stage: StageAuthenticated, Username: username}, nil
}

// AbortChallenge drops a pending challenge, e.g. when the user navigates
// back to the login screen.
func (s *FlowService) AbortChallenge(sess *sessions.Session) {
	s.sessions.AbortChallenge(sess)
}

// Logout clears the authenticated marker only. A pending challenge is
// abandoned through AbortChallenge, not here. Calling Logout on an empty
// session is a no-op.
func (s *FlowService) Logout(sess *sessions.Session) {
	s.sessions.Logout(sess)
}

// ListAdmins returns the credential table, seeding the bootstrap account
// when the store is empty.
func (s *FlowService) ListAdmins(ctx context.Context) ([]registry.AdminUserRecord, error) {
	return s.repo.LoadAdmins(ctx)
}

// ListProfiles returns every lifecycle profile.
func (s *FlowService) ListProfiles(ctx context.Context) ([]registry.User, error) {
	return s.repo.LoadUsers(ctx)
}

// RegistrySnapshot joins the credential table with the lifecycle
// profiles for the admin overview.
func (s *FlowService) RegistrySnapshot(ctx context.Context) ([]RegistryEntry, error) {
	admins, err := s.repo.LoadAdmins(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load credentials")
	}
	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load profiles")
	}

	profiles := make(map[string]registry.User, len(users))
	for _, u := range users {
		profiles[u.Username] = u
	}

	entries := make([]RegistryEntry, 0, len(admins))
	for _, admin := range admins {
		entry := RegistryEntry{
			Username:     admin.Username,
			PasswordHash: admin.PasswordHash,
		}
		if profile, ok := profiles[admin.Username]; ok {
			entry.HasProfile = true
			entry.TotpEnabled = profile.TotpEnabled
			entry.DeviceID = profile.RegisteredDeviceID
			entry.CreatedAt = profile.CreatedAt.Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateAccount adds a credential record. The lifecycle profile is not
// created here; it appears on the account's first login.
func (s *FlowService) CreateAccount(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New(errors.ErrCodeInvalidInput, "username and password are required")
	}

	admins, err := s.repo.LoadAdmins(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to load credentials")
	}
	for _, admin := range admins {
		if admin.Username == username {
			return errors.Newf(errors.ErrCodeAlreadyExists, "account %q already exists", username)
		}
	}

	if err := s.repo.CreateAdmin(ctx, username, password); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create account")
	}
	slog.Info("account created", "username", username)
	return nil
}

// EraseAll wipes both tables. The next LoadAdmins reseeds the bootstrap
// account. Confirmation is the caller's responsibility.
func (s *FlowService) EraseAll(ctx context.Context) error {
	if err := s.repo.EraseAll(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to erase registry")
	}
	slog.Warn("registry erased")
	return nil
}
