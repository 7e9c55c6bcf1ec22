package models

// Session is the authenticated caller state carried in the session token.
// It is created on login or registration and destroyed on logout.
type Session struct {
	UserUID          string `json:"user_uid"`
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	Role             string `json:"role"`
	ProfileCompleted bool   `json:"profile_completed"`
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == "admin"
}
