package registry

import "time"

// TotpEnabled flag values stored on a profile record.
const (
	TotpEnabledYes = "Y"
	TotpEnabledNo  = "N"
)

// BootstrapUsername is the superuser account seeded into an empty admin table.
// Its initial password is the username itself.
const BootstrapUsername = "admin"

// AdminUserRecord is one entry in the authoritative master credential list.
type AdminUserRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// User is the per-user authentication/MFA profile, keyed 1:1 by username to
// an AdminUserRecord once provisioned. PasswordHash must equal the matching
// admin record's hash after any reset; the reset operation maintains that.
type User struct {
	Username              string    `json:"username"`
	PasswordHash          string    `json:"password_hash"`
	TotpSecret            string    `json:"totp_secret,omitempty"`
	TotpEnabled           string    `json:"totp_enabled"`
	RegisteredDeviceID    string    `json:"registered_device_id,omitempty"`
	PasswordResetRequired bool      `json:"password_reset_required"`
	CreatedAt             time.Time `json:"createdAt"`
}
