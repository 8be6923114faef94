package api

// LoginRequest carries a credential check. Role selects the login path:
// empty for the two-factor lifecycle, "admin" for the management surface.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ResetPasswordRequest replaces the account password during the forced
// reset step. CarriedOldPassword is the transitional context the login
// response handed the client; the re-entered OldPassword is checked
// against it.
type ResetPasswordRequest struct {
	Username           string `json:"username"`
	CarriedOldPassword string `json:"carriedOldPassword"`
	OldPassword        string `json:"oldPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmPassword    string `json:"confirmPassword"`
}

// ProvisionRequest asks for enrollment material. The device attributes
// come from the browser and feed the fingerprint.
type ProvisionRequest struct {
	Username     string `json:"username"`
	UserAgent    string `json:"userAgent"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
}

// ConfirmRequest completes enrollment with the first authenticator code.
type ConfirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
	DeviceID string `json:"deviceId"`
}

// ChallengeRequest submits the one-time code for a pending login.
type ChallengeRequest struct {
	Code string `json:"code"`
}

// CreateAccountRequest adds a credential record from the admin surface.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// EraseRequest wipes the registry. Confirmed must be true; the admin UI
// asks the operator before sending it.
type EraseRequest struct {
	Confirmed bool `json:"confirmed"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse acknowledges an operation with no other payload.
type StatusResponse struct {
	Status string `json:"status"`
}
