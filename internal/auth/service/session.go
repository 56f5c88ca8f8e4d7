package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"intranet/internal/auth/models"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/requestcontext"
)

// Logout blacklists the caller's token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, principal requestcontext.Principal) error {
	if principal.TokenID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "token ID required")
	}
	ttl := principal.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl > 0 {
		if err := s.trl.RevokeToken(ctx, principal.TokenID, ttl); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
		}
		if s.metrics != nil {
			s.metrics.IncrementTokensRevoked()
		}
	}
	s.logAudit(ctx, audit.EventLoggedOut, principal.UserID.String(),
		"email", principal.Email,
		"jti", principal.TokenID,
	)
	return nil
}

// IsTokenRevoked backs the auth middleware's revocation check.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.trl.IsRevoked(ctx, jti)
}

// IsAccountActive backs the auth middleware's account check. Unknown users
// count as inactive.
func (s *Service) IsAccountActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Active, nil
}

// Me returns the caller's account. Inactive accounts are treated as signed out.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.Active {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account is inactive")
	}
	return user, nil
}
