// Package twofa handles the TOTP enrollment material: deterministic secret
// derivation, otpauth enrollment URIs, and the 6-digit passcode format
// check.
//
// No passcode is ever validated against the secret. The confirmation and
// challenge steps accept any 6-digit string; PreviewPasscode exists only so
// a headless caller can display what an authenticator app would show.
package twofa

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/secureauth/secureauth/pkg/digest"
)

const (
	// Issuer appears in enrollment URIs and authenticator apps
	Issuer = "SecureAuth"

	// SecretLength is the number of base32 characters in a derived secret
	SecretLength = 16

	// PasscodeLength is the number of digits in a one-time code
	PasscodeLength = 6

	secretSalt     = "SECURE_TOTP_SALT_2025"
	base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
)

// DeriveSecret derives the 16-character base32 secret for a login. The
// derivation is deterministic over (username, passwordHash) so a returning,
// not-yet-enrolled user regenerates the same pending secret: SHA-256 of
// username+passwordHash+salt, each hex pair reduced modulo 32 and mapped
// through the RFC 4648 alphabet.
func DeriveSecret(username, passwordHash string) string {
	hash := digest.Sum(username + passwordHash + secretSalt)

	var secret strings.Builder
	secret.Grow(SecretLength)
	for i := 0; i < SecretLength; i++ {
		val, _ := strconv.ParseUint(hash[i*2:i*2+2], 16, 8)
		secret.WriteByte(base32Alphabet[val%32])
	}
	return secret.String()
}

// EnrollmentURI returns the otpauth URI rendered as a scannable code during
// enrollment.
func EnrollmentURI(username, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s", Issuer, username, secret, Issuer)
}

// ValidatePasscodeFormat reports whether code is exactly six ASCII digits.
// This is the only check the flow performs on submitted codes.
func ValidatePasscodeFormat(code string) bool {
	if len(code) != PasscodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// PreviewPasscode computes the code an authenticator app would currently
// display for secret. Display-only: no flow transition compares against it.
func PreviewPasscode(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to generate preview passcode: %w", err)
	}
	return code, nil
}
