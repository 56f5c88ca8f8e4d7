package service

import (
	"context"
	"errors"
	"time"

	"intranet/internal/auth/device"
	"intranet/internal/auth/models"
	jwttoken "intranet/internal/jwt_token"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

const (
	methodPassword = "password"
	methodOTP      = "otp"

	invalidCredentials = "invalid email or password"
	accountLocked      = "too many failed attempts, try again later"
)

// Login authenticates with email and password. Unknown emails, wrong
// passwords and inactive accounts fail with the same message.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if err := s.checkLockout(ctx, req.Email, now); err != nil {
		s.observeLogin(methodPassword, "locked")
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if !s.comparePassword(hash, req.Password) || user == nil || !user.Active {
		return nil, s.failLogin(ctx, req.Email, now)
	}

	result, err := s.completeLogin(ctx, user, now)
	if err != nil {
		return nil, err
	}
	s.observeLogin(methodPassword, "success")
	s.logAudit(ctx, audit.EventLoginSucceeded, user.ID.String(),
		"email", user.Email,
		"method", methodPassword,
		"device", user.LastLoginDevice,
	)
	return result, nil
}

func (s *Service) checkLockout(ctx context.Context, identifier string, now time.Time) error {
	rec, err := s.lockouts.Get(ctx, identifier)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lockout")
	}
	if rec != nil && rec.IsLockedAt(now) {
		return dErrors.New(dErrors.CodeRateLimited, accountLocked)
	}
	return nil
}

// failLogin counts the failure and locks the identifier once the threshold
// is reached inside the window.
func (s *Service) failLogin(ctx context.Context, identifier string, now time.Time) error {
	rec, err := s.lockouts.RecordFailure(ctx, identifier, now, s.cfg.LockoutWindow)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if rec.FailureCount >= s.cfg.LockoutThreshold {
		until := now.Add(s.cfg.LockoutDuration)
		if err := s.lockouts.Lock(ctx, identifier, until); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock account")
		}
		s.observeLogin(methodPassword, "locked")
		s.logAudit(ctx, audit.EventAccountLocked, "",
			"email", identifier,
			"failures", rec.FailureCount,
			"locked_until", until,
		)
		return dErrors.New(dErrors.CodeRateLimited, accountLocked)
	}
	s.observeLogin(methodPassword, "failure")
	s.logAudit(ctx, audit.EventLoginFailed, "",
		"email", identifier,
		"failures", rec.FailureCount,
	)
	return dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
}

// completeLogin clears failures, stamps the login and issues a token.
func (s *Service) completeLogin(ctx context.Context, user *models.User, now time.Time) (*models.LoginResult, error) {
	if err := s.lockouts.Clear(ctx, user.Email); err != nil {
		s.logger.WarnContext(ctx, "failed to clear login failures", "error", err, "user_id", user.ID.String())
	}

	user.RecordLogin(device.ParseUserAgent(requestcontext.UserAgent(ctx)), now)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login")
	}

	issued, err := s.tokens.GenerateAccessToken(jwttoken.Subject{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   string(user.Role),
	}, s.cfg.TokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &models.LoginResult{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        user,
	}, nil
}

func (s *Service) observeLogin(method, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(method, outcome)
	}
}
