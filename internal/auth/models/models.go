package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/email"
)

// Role is a user's permission level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleStaff  Role = "staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleStaff:
		return true
	}
	return false
}

// User is an intranet account.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Department      string     `json:"department,omitempty"`
	Role            Role       `json:"role"`
	PasswordHash    string     `json:"-"`
	Active          bool       `json:"active"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	LastLoginDevice string     `json:"last_login_device,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewUser builds an active user, deriving the display name from the email
// when none is given.
func NewUser(id uuid.UUID, emailAddr, name, department string, role Role, now time.Time) (*User, error) {
	emailAddr = email.Normalize(emailAddr)
	if !email.IsValid(emailAddr) {
		return nil, dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}
	if role == "" {
		role = RoleStaff
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be one of admin, editor, staff")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email.DisplayName(emailAddr)
	}
	return &User{
		ID:         id,
		Email:      emailAddr,
		Name:       name,
		Department: strings.TrimSpace(department),
		Role:       role,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsActiveAdmin reports whether the user counts toward the admin floor.
func (u *User) IsActiveAdmin() bool {
	return u.Active && u.Role == RoleAdmin
}

// RecordLogin stamps a successful login.
func (u *User) RecordLogin(device string, now time.Time) {
	u.LastLoginAt = &now
	u.LastLoginDevice = device
	u.UpdatedAt = now
}

// OTPPurpose scopes a one-time code to a single flow.
type OTPPurpose string

const (
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

func (p OTPPurpose) IsValid() bool {
	return p == OTPPurposeLogin || p == OTPPurposePasswordReset
}

// OTP is a pending one-time code. Only the bcrypt hash of the code is kept.
type OTP struct {
	Email     string
	Purpose   OTPPurpose
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (o *OTP) IsExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Lockout tracks consecutive failed logins for one email.
type Lockout struct {
	Identifier   string
	FailureCount int
	FirstFailure time.Time
	LockedUntil  *time.Time
}

func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// LoginResult is returned by every flow that issues a token.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Role   Role
	Query  string
	Active *bool
}
