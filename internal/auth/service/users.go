package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"intranet/internal/auth/models"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/email"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

// CreateUser adds an account. The password is optional; users without one
// sign in with an emailed code.
func (s *Service) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	req.Email = email.Normalize(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := models.NewUser(uuid.New(), req.Email, req.Name, req.Department, req.Role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if req.Password != "" {
		if err := ValidatePassword(req.Password); err != nil {
			return nil, err
		}
		if user.PasswordHash, err = s.hashPassword(req.Password); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
		}
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	s.logAudit(ctx, audit.EventUserCreated, user.ID.String(),
		"email", user.Email,
		"role", string(user.Role),
	)
	return user, nil
}

// EnsureAdmin creates an admin account unless the email already exists.
// The bool reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, emailAddr, name, password string) (*models.User, bool, error) {
	existing, err := s.users.FindByEmail(ctx, email.Normalize(emailAddr))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if password == "" {
		return nil, false, dErrors.New(dErrors.CodeValidation, "admin password is required")
	}
	user, err := s.CreateUser(ctx, &models.CreateUserRequest{
		Email:    emailAddr,
		Name:     name,
		Role:     models.RoleAdmin,
		Password: password,
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, filter models.UserFilter, page paging.Page) (paging.Result[*models.User], error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Role != "" && !filter.Role.IsValid() {
		return paging.Result[*models.User]{}, dErrors.New(dErrors.CodeValidation, "role must be one of admin, editor, staff")
	}
	users, total, err := s.users.List(ctx, filter, page)
	if err != nil {
		return paging.Result[*models.User]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return paging.NewResult(users, total, page), nil
}

// UpdateUser applies the non-nil fields. Demoting the last active admin is
// refused.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req *models.UpdateUserRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Role != nil && *req.Role != models.RoleAdmin && user.IsActiveAdmin() {
		if err := s.requireAnotherAdmin(ctx, "the last active admin cannot be demoted"); err != nil {
			return nil, err
		}
	}
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			user.Name = name
		}
	}
	if req.Department != nil {
		user.Department = strings.TrimSpace(*req.Department)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	s.logAudit(ctx, audit.EventUserUpdated, user.ID.String(),
		"email", user.Email,
		"role", string(user.Role),
	)
	return user, nil
}

// SetActive activates or deactivates an account. Admins cannot deactivate
// themselves or the last active admin.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Active == active {
		return user, nil
	}
	if !active {
		if requestcontext.UserID(ctx) == id {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "you cannot deactivate your own account")
		}
		if user.IsActiveAdmin() {
			if err := s.requireAnotherAdmin(ctx, "the last active admin cannot be deactivated"); err != nil {
				return nil, err
			}
		}
	}
	user.Active = active
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	event := audit.EventUserReactivated
	if !active {
		event = audit.EventUserDeactivated
	}
	s.logAudit(ctx, event, user.ID.String(), "email", user.Email)
	return user, nil
}

// DeleteUser removes an account under the same guards as deactivation.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if requestcontext.UserID(ctx) == id {
		return dErrors.New(dErrors.CodeInvariantViolation, "you cannot delete your own account")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.IsActiveAdmin() {
		if err := s.requireAnotherAdmin(ctx, "the last active admin cannot be deleted"); err != nil {
			return err
		}
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete user")
	}
	s.logAudit(ctx, audit.EventUserDeleted, id.String(), "email", user.Email)
	return nil
}

func (s *Service) requireAnotherAdmin(ctx context.Context, message string) error {
	n, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
	}
	if n <= 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, message)
	}
	return nil
}
