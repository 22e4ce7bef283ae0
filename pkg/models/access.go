package models

// Defaults applied when the caller carries no profile.
const (
	GuestAuthCode = "GUEST"
	GuestLevel    = 9
)

// AccessProfile identifies what the caller may see. Lower levels see more
// columns; level 9 is the least privileged guest.
type AccessProfile struct {
	AuthCode string `json:"auth"`
	UserID   string `json:"user,omitempty"`
	Level    int    `json:"level"`
}

// GuestProfile returns the profile used for anonymous callers.
func GuestProfile() *AccessProfile {
	return &AccessProfile{AuthCode: GuestAuthCode, UserID: "guest", Level: GuestLevel}
}
