// Package models contains the domain structures shared by the services,
// the storage layer and the client-state store.
package models

import "time"

// User is a registered ByOnco account as stored in the database.
type User struct {
	UID              string     // Unique user identifier
	Email            string     // E-mail, unique, used as the login
	DisplayName      string     // Name shown in the UI
	PasswordHash     string     // bcrypt hash of the password
	Role             string     // "admin" or "user"
	ProfileCompleted bool       // Whether the onboarding profile form is done
	ResetToken       *string    // Pending password-reset token, nil when none
	ResetExpiresAt   *time.Time // Expiry of the pending reset token
	CreatedAt        time.Time
}
