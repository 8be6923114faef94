// Package device derives a short device signature from environment
// attributes supplied by the caller. The signature is an opaque label stored
// on the profile at enrollment, not a security control.
package device

import (
	"fmt"
	"strings"

	"github.com/secureauth/secureauth/pkg/digest"
)

// FingerprintLength is the number of hex characters in a device signature.
const FingerprintLength = 12

// FingerprintData contains the components used to generate a device fingerprint
type FingerprintData struct {
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
}

// GenerateFingerprint creates a device signature from the provided data:
// SHA-256 of "<userAgent>-<width>x<height>", first 12 hex characters,
// uppercased. This package performs no environment probing itself; the
// caller supplies every attribute.
func GenerateFingerprint(data FingerprintData) string {
	combined := fmt.Sprintf("%s-%dx%d", data.UserAgent, data.ScreenWidth, data.ScreenHeight)
	return strings.ToUpper(digest.Sum(combined)[:FingerprintLength])
}

// Fingerprint is a convenience wrapper over GenerateFingerprint
func Fingerprint(userAgent string, screenWidth, screenHeight int) string {
	return GenerateFingerprint(FingerprintData{
		UserAgent:    userAgent,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	})
}
