package model

import "time"

// Roles carried in the JWT "role" claim.
const (
	RoleOwner    = "OWNER"
	RoleCustomer = "CUSTOMER"
)

// User represents an account stored in the `users` table.
//
// Fields:
//
//	ID            – primary key identifier of the user.
//	Name          – display name.
//	Email         – unique, lower-cased email address.
//	PasswordHash  – bcrypt hashed password.
//	Role          – OWNER or CUSTOMER.
//	IsActive      – whether the account may log in.
//	LoginAttempts – consecutive failed logins since the last success.
//	LockUntil     – logins are refused until this instant (nullable).
type User struct {
	ID            uint64     // users.id
	Name          string     // users.name
	Email         string     // users.email
	PasswordHash  string     // users.password_hash
	Role          string     // users.role
	IsActive      bool       // users.is_active
	LoginAttempts int        // users.login_attempts
	LockUntil     *time.Time // users.lock_until (nullable)
	CreatedAt     time.Time  // users.created_at
	UpdatedAt     time.Time  // users.updated_at
}

// Locked reports whether the account is inside a lockout window at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}
