package loginflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/pkg/device"
	"github.com/secureauth/secureauth/pkg/digest"
	"github.com/secureauth/secureauth/pkg/errors"
	"github.com/secureauth/secureauth/pkg/registry"
	"github.com/secureauth/secureauth/pkg/sessions"
)

func setupFlowService(t *testing.T) (*FlowService, registry.RegistryRepository) {
	t.Helper()
	repo := registry.NewInMemoryRegistryRepository()
	svc := NewFlowService(repo, sessions.NewSessionService(), nil)
	return svc, repo
}

func TestLoginUnknownCredentials(t *testing.T) {
	svc, repo := setupFlowService(t)
	ctx := context.Background()
	sess := sessions.NewSession()

	_, err := svc.Login(ctx, sess, "nobody", "whatever", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))

	// A failed login must not leave a lifecycle profile behind.
	_, found, err := repo.LoadUser(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginWrongPasswordForKnownAccount(t *testing.T) {
	svc, _ := setupFlowService(t)
	ctx := context.Background()
	sess := sessions.NewSession()

	_, err := svc.Login(ctx, sess, "admin", "not-admin", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))
}

func TestAdminRoleGate(t *testing.T) {
	svc, repo := setupFlowService(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateAdmin(ctx, "alice", "alice"))

	t.Run("bad credentials on the admin path read as bad credentials", func(t *testing.T) {
		sess := sessions.NewSession()
		_, err := svc.Login(ctx, sess, "alice", "wrong-password", RoleAdmin)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))
	})

	t.Run("non-admin account is rejected on the admin path", func(t *testing.T) {
		sess := sessions.NewSession()
		_, err := svc.Login(ctx, sess, "alice", "alice", RoleAdmin)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
	})

	t.Run("admin bypasses the two-factor lifecycle", func(t *testing.T) {
		sess := sessions.NewSession()
		result, err := svc.Login(ctx, sess, "admin", "admin", RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, StageAdmin, result.Stage)
		assert.Equal(t, "admin", sess.AuthenticatedUsername)
	})
}

// TestFullEnrollmentLifecycle walks a fresh account through the whole
// flow: first login, forced reset, enrollment, re-login and the OTP
// challenge.
func TestFullEnrollmentLifecycle(t *testing.T) {
	svc, repo := setupFlowService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, "bob", "bob"))

	t.Run("first login forces a password reset", func(t *testing.T) {
		sess := sessions.NewSession()
		result, err := svc.Login(ctx, sess, "bob", "bob", "")
		require.NoError(t, err)
		assert.Equal(t, StagePasswordReset, result.Stage)
		assert.Equal(t, "bob", result.OldPassword)

		user, found, err := repo.LoadUser(ctx, "bob")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, user.PasswordResetRequired)
		assert.Equal(t, digest.Sum("bob"), user.PasswordHash)
	})

	t.Run("reset rejects an old password that differs from the carried one", func(t *testing.T) {
		_, err := svc.ResetPassword(ctx, "bob", "bob", "wrong", "Valid123!", "Valid123!")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeWrongOldPassword))
	})

	t.Run("reset rejects a weak new password", func(t *testing.T) {
		_, err := svc.ResetPassword(ctx, "bob", "bob", "bob", "weak", "weak")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodePasswordComplexity))
	})

	t.Run("reset rejects a mismatched confirmation", func(t *testing.T) {
		_, err := svc.ResetPassword(ctx, "bob", "bob", "bob", "Valid123!", "Valid123?")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfirmationMismatch))
	})

	t.Run("reset updates both tables", func(t *testing.T) {
		result, err := svc.ResetPassword(ctx, "bob", "bob", "bob", "Valid123!", "Valid123!")
		require.NoError(t, err)
		assert.Equal(t, StageQRSetup, result.Stage)

		newHash := digest.Sum("Valid123!")
		user, found, err := repo.LoadUser(ctx, "bob")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, newHash, user.PasswordHash)
		assert.False(t, user.PasswordResetRequired)

		admins, err := repo.LoadAdmins(ctx)
		require.NoError(t, err)
		var adminHash string
		for _, admin := range admins {
			if admin.Username == "bob" {
				adminHash = admin.PasswordHash
			}
		}
		assert.Equal(t, newHash, adminHash, "credential table must carry the same hash as the profile")
	})

	var deviceID string

	t.Run("provisioning derives a stable secret and stages the device", func(t *testing.T) {
		dev := device.FingerprintData{UserAgent: "Mozilla/5.0", ScreenWidth: 1920, ScreenHeight: 1080}
		first, err := svc.ProvisionTotp(ctx, "bob", dev)
		require.NoError(t, err)
		assert.Len(t, first.Secret, 16)
		assert.Contains(t, first.URI, "otpauth://totp/SecureAuth:bob?secret="+first.Secret)
		assert.Len(t, first.DeviceID, device.FingerprintLength)

		// Re-provisioning reuses the stored secret.
		second, err := svc.ProvisionTotp(ctx, "bob", dev)
		require.NoError(t, err)
		assert.Equal(t, first.Secret, second.Secret)

		// The fingerprint is not bound until the code is confirmed.
		user, _, err := repo.LoadUser(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, user.RegisteredDeviceID)
		assert.Equal(t, registry.TotpEnabledNo, user.TotpEnabled)

		deviceID = first.DeviceID
	})

	t.Run("confirmation rejects a malformed code", func(t *testing.T) {
		_, err := svc.ConfirmTotp(ctx, "bob", "12345", deviceID)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCode))

		_, err = svc.ConfirmTotp(ctx, "bob", "123456 ", deviceID)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCode))
	})

	t.Run("confirmation enables two-factor and binds the device", func(t *testing.T) {
		result, err := svc.ConfirmTotp(ctx, "bob", "123456", deviceID)
		require.NoError(t, err)
		assert.Equal(t, StageLogin, result.Stage)

		user, _, err := repo.LoadUser(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, registry.TotpEnabledYes, user.TotpEnabled)
		assert.Equal(t, deviceID, user.RegisteredDeviceID)
	})

	t.Run("next login lands on the otp challenge", func(t *testing.T) {
		sess := sessions.NewSession()
		result, err := svc.Login(ctx, sess, "bob", "Valid123!", "")
		require.NoError(t, err)
		assert.Equal(t, StageOTPChallenge, result.Stage)

		// Anything but exactly six digits is rejected without consuming
		// the challenge; padding is no exception.
		_, err = svc.ChallengeOtp(ctx, sess, "12ab56")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCode))

		_, err = svc.ChallengeOtp(ctx, sess, " 654321 ")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCode))

		done, err := svc.ChallengeOtp(ctx, sess, "654321")
		require.NoError(t, err)
		assert.Equal(t, StageAuthenticated, done.Stage)
		assert.Equal(t, "bob", done.Username)
	})

	t.Run("logout clears only the authenticated marker", func(t *testing.T) {
		sess := sessions.NewSession()
		_, err := svc.Login(ctx, sess, "bob", "Valid123!", "")
		require.NoError(t, err)

		done, err := svc.ChallengeOtp(ctx, sess, "123456")
		require.NoError(t, err)
		assert.Equal(t, StageAuthenticated, done.Stage)

		svc.Logout(sess)
		assert.Empty(t, sess.AuthenticatedUsername)

		// A pending challenge survives logout; abandoning one goes through
		// AbortChallenge.
		_, err = svc.Login(ctx, sess, "bob", "Valid123!", "")
		require.NoError(t, err)
		svc.Logout(sess)
		assert.Equal(t, "bob", sess.PendingUsername)

		svc.AbortChallenge(sess)
		_, err = svc.ChallengeOtp(ctx, sess, "123456")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
	})
}

func TestChallengeWithoutLogin(t *testing.T) {
	svc, _ := setupFlowService(t)
	sess := sessions.NewSession()

	_, err := svc.ChallengeOtp(context.Background(), sess, "123456")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
}

func TestAbortChallengeDropsPendingLogin(t *testing.T) {
	svc, repo := setupFlowService(t)
	ctx := context.Background()
	sess := sessions.NewSession()

	require.NoError(t, repo.SaveUser(ctx, registry.User{
		Username:     "carol",
		PasswordHash: digest.Sum("Carol123!"),
		TotpSecret:   "AAAAAAAAAAAAAAAA",
		TotpEnabled:  registry.TotpEnabledYes,
	}))
	require.NoError(t, repo.CreateAdmin(ctx, "carol", "Carol123!"))

	result, err := svc.Login(ctx, sess, "carol", "Carol123!", "")
	require.NoError(t, err)
	assert.Equal(t, StageOTPChallenge, result.Stage)

	svc.AbortChallenge(sess)
	_, err = svc.ChallengeOtp(ctx, sess, "123456")
	require.Error(t, err)
}

func TestCreateAccount(t *testing.T) {
	svc, repo := setupFlowService(t)
	ctx := context.Background()

	t.Run("rejects empty input", func(t *testing.T) {
		err := svc.CreateAccount(ctx, "", "pw")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
	})

	t.Run("stores the hash, never the plaintext", func(t *testing.T) {
		require.NoError(t, svc.CreateAccount(ctx, "dave", "dave"))
		admins, err := repo.LoadAdmins(ctx)
		require.NoError(t, err)
		var record registry.AdminUserRecord
		for _, admin := range admins {
			if admin.Username == "dave" {
				record = admin
			}
		}
		assert.Equal(t, digest.Sum("dave"), record.PasswordHash)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		err := svc.CreateAccount(ctx, "dave", "other")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))
	})
}

func TestRegistrySnapshot(t *testing.T) {
	svc, _ := setupFlowService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, "bob", "bob"))
	sess := sessions.NewSession()
	_, err := svc.Login(ctx, sess, "bob", "bob", "")
	require.NoError(t, err)

	entries, err := svc.RegistrySnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := make(map[string]RegistryEntry, len(entries))
	for _, entry := range entries {
		byName[entry.Username] = entry
	}

	// The bootstrap admin never logs in through the lifecycle, so it has
	// no profile.
	assert.False(t, byName["admin"].HasProfile)
	assert.True(t, byName["bob"].HasProfile)
	assert.Equal(t, registry.TotpEnabledNo, byName["bob"].TotpEnabled)
	assert.NotEmpty(t, byName["bob"].CreatedAt)
}

func TestEraseAllReseedsBootstrapAccount(t *testing.T) {
	svc, _ := setupFlowService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, "bob", "bob"))
	require.NoError(t, svc.EraseAll(ctx))

	admins, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, registry.BootstrapUsername, admins[0].Username)

	profiles, err := svc.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
