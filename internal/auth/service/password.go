package service

import (
	"context"
	"errors"
	"unicode"

	"github.com/google/uuid"

	"intranet/internal/auth/models"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
)

// ValidatePassword enforces the password policy: at least eight characters,
// at most 72 bytes, with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return dErrors.New(dErrors.CodeValidation, "password must contain letters and digits")
	}
	return nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *models.ChangePasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !s.comparePassword(user.PasswordHash, req.CurrentPassword) {
		return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
	}
	if err := ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, req.NewPassword); err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventPasswordChanged, user.ID.String(), "email", user.Email)
	return nil
}

func (s *Service) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	user.PasswordHash = hash
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}
	return nil
}
